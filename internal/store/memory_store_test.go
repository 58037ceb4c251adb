package store

import (
	"errors"
	"testing"
	"time"

	"lawtutor/internal/domain"
)

func ts(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func TestMemoryStoreChatOrderAndScoping(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateChat("u1", domain.Chat{ID: "a", ChatName: "First", LastUpdated: ts(1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateChat("u1", domain.Chat{ID: "b", ChatName: "Second", LastUpdated: ts(5)}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateChat("u2", domain.Chat{ID: "c", ChatName: "Other user", LastUpdated: ts(9)}); err != nil {
		t.Fatal(err)
	}

	chats, err := s.ListChats("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != "b" || chats[1].ID != "a" {
		t.Fatalf("chats not sorted by lastUpdated desc: %v, %v", chats[0].ID, chats[1].ID)
	}

	if _, ok, _ := s.GetChat("u2", "a"); ok {
		t.Fatal("chat leaked across users")
	}
}

func TestMemoryStoreTouchReorders(t *testing.T) {
	s := NewMemoryStore()
	s.CreateChat("u1", domain.Chat{ID: "a", LastUpdated: ts(1)})
	s.CreateChat("u1", domain.Chat{ID: "b", LastUpdated: ts(5)})

	if err := s.TouchChat("u1", "a", ts(10)); err != nil {
		t.Fatal(err)
	}
	chats, _ := s.ListChats("u1")
	if chats[0].ID != "a" {
		t.Fatalf("touched chat should sort first, got %q", chats[0].ID)
	}
}

func TestMemoryStoreDeleteChatCascades(t *testing.T) {
	s := NewMemoryStore()
	s.CreateChat("u1", domain.Chat{ID: "a"})
	s.AppendMessage("u1", "a", domain.Message{ID: "m1", Sender: domain.SenderUser, Message: "hi", Timestamp: ts(1)})
	s.AppendMessage("u1", "a", domain.Message{ID: "m2", Sender: domain.SenderTutor, Message: "hello", Timestamp: ts(2)})
	s.SaveBookmark("u1", domain.Bookmark{ID: "bm1", LinkedMessageID: "m2", ChatID: "a", Timestamp: ts(3)})
	s.SaveBookmark("u1", domain.Bookmark{ID: "bm2", LinkedMessageID: "x", ChatID: "other", Timestamp: ts(4)})

	if err := s.DeleteChat("u1", "a"); err != nil {
		t.Fatal(err)
	}
	if msgs, _ := s.ListMessages("u1", "a"); len(msgs) != 0 {
		t.Fatalf("messages survived chat delete: %d", len(msgs))
	}
	bms, _ := s.ListBookmarks("u1")
	if len(bms) != 1 || bms[0].ID != "bm2" {
		t.Fatalf("bookmark cascade wrong: %+v", bms)
	}
	if err := s.DeleteChat("u1", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreMessagesSortedByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	s.CreateChat("u1", domain.Chat{ID: "a"})
	s.AppendMessage("u1", "a", domain.Message{ID: "m2", Timestamp: ts(5)})
	s.AppendMessage("u1", "a", domain.Message{ID: "m1", Timestamp: ts(1)})
	s.AppendMessage("u1", "a", domain.Message{ID: "m3", Timestamp: ts(9)})

	msgs, err := s.ListMessages("u1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" || msgs[2].ID != "m3" {
		t.Fatalf("messages out of order: %+v", msgs)
	}
}

func TestMemoryStoreUpdateMessageText(t *testing.T) {
	s := NewMemoryStore()
	s.AppendMessage("u1", "a", domain.Message{ID: "m1", Message: "old", Timestamp: ts(1)})

	if err := s.UpdateMessageText("u1", "a", "m1", "new", ts(2)); err != nil {
		t.Fatal(err)
	}
	msgs, _ := s.ListMessages("u1", "a")
	if msgs[0].Message != "new" {
		t.Fatalf("text not updated: %q", msgs[0].Message)
	}
	if msgs[0].EditedAt == nil || !msgs[0].EditedAt.Equal(ts(2)) {
		t.Fatalf("editedAt not set: %v", msgs[0].EditedAt)
	}
	if err := s.UpdateMessageText("u1", "wrong-chat", "m1", "x", ts(3)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong chat, got %v", err)
	}
}

func TestMemoryStoreBookmarkLifecycle(t *testing.T) {
	s := NewMemoryStore()
	s.SaveBookmark("u1", domain.Bookmark{ID: "b1", LinkedMessageID: "m1", ChatID: "a", Timestamp: ts(1)})
	s.SaveBookmark("u1", domain.Bookmark{ID: "b2", LinkedMessageID: "m2", ChatID: "a", Timestamp: ts(5)})

	bms, _ := s.ListBookmarks("u1")
	if len(bms) != 2 || bms[0].ID != "b2" {
		t.Fatalf("bookmarks not sorted newest first: %+v", bms)
	}
	if err := s.DeleteBookmark("u1", "b1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBookmark("u1", "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteAllBookmarks("u1"); err != nil {
		t.Fatal(err)
	}
	if bms, _ := s.ListBookmarks("u1"); len(bms) != 0 {
		t.Fatalf("bookmarks survived clear: %d", len(bms))
	}
}

func TestMemoryStoreUploads(t *testing.T) {
	s := NewMemoryStore()
	s.SaveUpload("u1", domain.Upload{ID: "f1", FileName: "notes.pdf", UploadedAt: ts(1)})
	s.SaveUpload("u1", domain.Upload{ID: "f2", FileName: "case.pdf", UploadedAt: ts(5)})

	ups, err := s.ListUploads("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 2 || ups[0].ID != "f2" {
		t.Fatalf("uploads not sorted newest first: %+v", ups)
	}
	u, ok, _ := s.GetUpload("u1", "f1")
	if !ok || u.FileName != "notes.pdf" {
		t.Fatalf("get upload: %v %v", ok, u)
	}
	if err := s.DeleteUpload("u1", "f1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetUpload("u1", "f1"); ok {
		t.Fatal("upload survived delete")
	}
}
