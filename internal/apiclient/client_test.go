package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lawtutor/internal/ai"
	"lawtutor/internal/app"
	"lawtutor/internal/domain"
	"lawtutor/internal/server"
	"lawtutor/internal/storage"
	"lawtutor/internal/store"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(app.Config{
		Store:     store.NewMemoryStore(),
		Blobs:     blobs,
		Generator: &ai.StaticGenerator{Reply: "Consideration must move from the promisee."},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := server.New(server.Config{App: a})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientChatRoundTrip(t *testing.T) {
	ts := newTestBackend(t)
	c := NewClient(ts.URL, "student-1")
	ctx := context.Background()

	chatID, err := c.CreateChat(ctx, "Contract Law")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if chatID == "" {
		t.Fatal("expected a chat id")
	}

	chats, err := c.ListChats(ctx)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 1 || chats[0].ChatName != "Contract Law" {
		t.Fatalf("unexpected chats: %+v", chats)
	}

	res, err := c.SendMessage(ctx, SendMessageRequest{ChatID: chatID, Message: "What is consideration?"})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if res.Reply == "" || res.ChatID != chatID {
		t.Fatalf("unexpected send result: %+v", res)
	}
	if res.UserMessageID == "" || res.AIMessageID == "" {
		t.Fatalf("message ids missing: %+v", res)
	}

	chat, msgs, err := c.GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.ID != chatID || len(msgs) != 2 {
		t.Fatalf("unexpected chat state: %+v %d messages", chat, len(msgs))
	}
	if msgs[0].Sender != domain.SenderUser || msgs[1].Sender != domain.SenderTutor {
		t.Fatalf("sender order wrong: %+v", msgs)
	}

	edit, err := c.EditMessage(ctx, chatID, res.UserMessageID, "What is promissory estoppel?")
	if err != nil {
		t.Fatalf("edit message: %v", err)
	}
	if edit.ReplacesMessageID != res.AIMessageID {
		t.Fatalf("edit should replace the old reply: %+v", edit)
	}

	if err := c.RenameChat(ctx, chatID, "Estoppel"); err != nil {
		t.Fatalf("rename chat: %v", err)
	}
	if err := c.DeleteChat(ctx, chatID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	if _, _, err := c.GetChat(ctx, chatID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestClientBookmarks(t *testing.T) {
	ts := newTestBackend(t)
	c := NewClient(ts.URL, "student-1")
	ctx := context.Background()

	res, err := c.SendMessage(ctx, SendMessageRequest{Message: "Explain offer and acceptance."})
	if err != nil {
		t.Fatal(err)
	}

	saved, err := c.SaveBookmark(ctx, domain.Bookmark{
		LinkedMessageID: res.AIMessageID,
		ChatID:          res.ChatID,
		Snippet:         "Consideration must move from the promisee.",
		Type:            domain.BookmarkTutor,
	})
	if err != nil {
		t.Fatalf("save bookmark: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("bookmark id missing")
	}

	found, err := c.SearchBookmarks(ctx, "promisee")
	if err != nil {
		t.Fatalf("search bookmarks: %v", err)
	}
	if len(found) != 1 || found[0].ID != saved.ID {
		t.Fatalf("search result wrong: %+v", found)
	}

	if err := c.DeleteBookmark(ctx, saved.ID); err != nil {
		t.Fatalf("delete bookmark: %v", err)
	}
	remaining, err := c.ListBookmarks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("bookmark not deleted: %+v", remaining)
	}
}

func TestClientUploadsAndHistory(t *testing.T) {
	ts := newTestBackend(t)
	c := NewClient(ts.URL, "student-1")
	ctx := context.Background()

	up, err := c.Upload(ctx, "notes.txt", "Contract Law", strings.NewReader("duress vitiates consent"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.ID == "" || up.FileName != "notes.txt" {
		t.Fatalf("unexpected upload: %+v", up)
	}
	if up.Chapter != "Contract Law" {
		t.Fatalf("chapter not carried with the upload: %+v", up)
	}

	uploads, err := c.ListUploads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	if err := c.DeleteUpload(ctx, up.ID); err != nil {
		t.Fatalf("delete upload: %v", err)
	}

	if _, err := c.SendMessage(ctx, SendMessageRequest{Message: "hello"}); err != nil {
		t.Fatal(err)
	}
	history, err := c.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two history entries, got %d", len(history))
	}
	if err := c.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	history, err = c.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("history not cleared: %+v", history)
	}
}

func TestClientScopesRequestsToUser(t *testing.T) {
	ts := newTestBackend(t)
	ctx := context.Background()

	alice := NewClient(ts.URL, "alice")
	bob := NewClient(ts.URL, "bob")

	if _, err := alice.CreateChat(ctx, "Torts"); err != nil {
		t.Fatal(err)
	}
	chats, err := bob.ListChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 0 {
		t.Fatalf("chats leaked across users: %+v", chats)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"message is required"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "student-1")
	_, err := c.SendMessage(context.Background(), SendMessageRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "message is required" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}
