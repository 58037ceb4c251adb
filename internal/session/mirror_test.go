package session

import (
	"testing"

	"lawtutor/internal/domain"
)

func TestMirrorUpsertChatPrunesOrphans(t *testing.T) {
	m := NewMirror(newFakeBackend())
	m.AddBookmark(domain.Bookmark{ID: "b1", LinkedMessageID: "m1", ChatID: "gone"})
	m.AddBookmark(domain.Bookmark{ID: "b2", LinkedMessageID: "m2", ChatID: domain.UnknownChatID})

	m.UpsertChat(domain.Chat{ID: "c1", ChatName: "Contract Law"})

	bms := m.Bookmarks()
	if len(bms) != 1 || bms[0].ID != "b2" {
		t.Fatalf("orphan should be pruned, sentinel kept: %+v", bms)
	}
}

func TestMirrorRenameChatPrunesOrphans(t *testing.T) {
	m := NewMirror(newFakeBackend())
	m.UpsertChat(domain.Chat{ID: "c1", ChatName: "Old"})
	m.AddBookmark(domain.Bookmark{ID: "b1", LinkedMessageID: "m1", ChatID: "gone"})

	m.RenameChat("c1", "New")

	if chat, _ := m.Chat("c1"); chat.ChatName != "New" {
		t.Fatalf("rename did not apply: %+v", chat)
	}
	if bms := m.Bookmarks(); len(bms) != 0 {
		t.Fatalf("orphan should be pruned on rename: %+v", bms)
	}
}
