package session

import (
	"testing"

	"lawtutor/internal/domain"
)

func TestPruneOrphanBookmarks(t *testing.T) {
	chats := []domain.Chat{{ID: "c1"}, {ID: "c2"}}
	bookmarks := []domain.Bookmark{
		{ID: "b1", ChatID: "c1"},
		{ID: "b2", ChatID: "deleted-chat"},
		{ID: "b3", ChatID: "c2"},
		{ID: "b4", ChatID: domain.UnknownChatID},
	}

	kept, removed := PruneOrphanBookmarks(chats, bookmarks)
	if len(kept) != 3 {
		t.Fatalf("expected 3 kept, got %d", len(kept))
	}
	if len(removed) != 1 || removed[0].ID != "b2" {
		t.Fatalf("expected only b2 removed, got %+v", removed)
	}
}

func TestPruneOrphanBookmarksKeepsUnknownSentinel(t *testing.T) {
	kept, removed := PruneOrphanBookmarks(nil, []domain.Bookmark{
		{ID: "b1", ChatID: domain.UnknownChatID},
	})
	if len(removed) != 0 || len(kept) != 1 {
		t.Fatalf("unknown-chat bookmark must survive: kept=%d removed=%d", len(kept), len(removed))
	}
}

func TestPruneOrphanBookmarksIdempotent(t *testing.T) {
	chats := []domain.Chat{{ID: "c1"}}
	bookmarks := []domain.Bookmark{
		{ID: "b1", ChatID: "c1"},
		{ID: "b2", ChatID: "gone"},
		{ID: "b3", ChatID: domain.UnknownChatID},
	}

	once, removedOnce := PruneOrphanBookmarks(chats, bookmarks)
	twice, removedTwice := PruneOrphanBookmarks(chats, once)
	if len(removedOnce) != 1 {
		t.Fatalf("first pass should remove one, got %d", len(removedOnce))
	}
	if len(removedTwice) != 0 {
		t.Fatalf("second pass must remove nothing, got %+v", removedTwice)
	}
	if len(twice) != len(once) {
		t.Fatalf("second pass changed the kept set: %d vs %d", len(twice), len(once))
	}
}

func TestPruneOrphanBookmarksEmptyInputs(t *testing.T) {
	kept, removed := PruneOrphanBookmarks(nil, nil)
	if len(kept) != 0 || len(removed) != 0 {
		t.Fatal("empty inputs should yield empty outputs")
	}
}
