package session

import (
	"context"
	"log/slog"
	"sync"

	"lawtutor/internal/apiclient"
	"lawtutor/internal/domain"
)

// Backend is the slice of the HTTP client the session layer depends on.
type Backend interface {
	ListChats(ctx context.Context) ([]domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (domain.Chat, []domain.Message, error)
	CreateChat(ctx context.Context, name string) (string, error)
	RenameChat(ctx context.Context, chatID, newName string) error
	DeleteChat(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, req apiclient.SendMessageRequest) (apiclient.SendMessageResponse, error)
	EditMessage(ctx context.Context, chatID, messageID, newText string) (apiclient.EditMessageResponse, error)
	ListBookmarks(ctx context.Context) ([]domain.Bookmark, error)
	SaveBookmark(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, bookmarkID string) error
	ListUploads(ctx context.Context) ([]domain.Upload, error)
}

// Mirror keeps a local copy of the server-side chat, bookmark, and upload
// state. Refreshes replace whole snapshots; a failed fetch keeps the
// previous snapshot so the UI never goes blank on a network hiccup.
//
// Every change to chats or bookmarks runs the orphan filter. Orphans are
// dropped locally first and then deleted on the server best effort, so a
// failed cleanup request just repeats on the next pass.
type Mirror struct {
	backend Backend

	mu        sync.RWMutex
	chats     []domain.Chat
	bookmarks []domain.Bookmark
	uploads   []domain.Upload
	listeners []func()
}

func NewMirror(backend Backend) *Mirror {
	return &Mirror{backend: backend}
}

// OnChange registers a callback fired after any snapshot changes.
// Callbacks run outside the mirror lock.
func (m *Mirror) OnChange(fn func()) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Chats returns the current chat snapshot, most recently updated first.
func (m *Mirror) Chats() []domain.Chat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Chat, len(m.chats))
	copy(out, m.chats)
	return out
}

// Chat looks up one chat in the snapshot.
func (m *Mirror) Chat(chatID string) (domain.Chat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return domain.Chat{}, false
}

// Bookmarks returns the current bookmark snapshot.
func (m *Mirror) Bookmarks() []domain.Bookmark {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Bookmark, len(m.bookmarks))
	copy(out, m.bookmarks)
	return out
}

// Uploads returns the current upload snapshot.
func (m *Mirror) Uploads() []domain.Upload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Upload, len(m.uploads))
	copy(out, m.uploads)
	return out
}

// RefreshChats replaces the chat snapshot and re-filters bookmarks
// against it.
func (m *Mirror) RefreshChats(ctx context.Context) error {
	chats, err := m.backend.ListChats(ctx)
	if err != nil {
		slog.Warn("chat refresh failed, keeping snapshot", "error", err)
		return err
	}
	m.mu.Lock()
	m.chats = chats
	removed := m.filterLocked()
	m.mu.Unlock()
	m.cleanupOrphans(ctx, removed)
	m.notify()
	return nil
}

// RefreshBookmarks replaces the bookmark snapshot and filters it against
// the known chats.
func (m *Mirror) RefreshBookmarks(ctx context.Context) error {
	bookmarks, err := m.backend.ListBookmarks(ctx)
	if err != nil {
		slog.Warn("bookmark refresh failed, keeping snapshot", "error", err)
		return err
	}
	m.mu.Lock()
	m.bookmarks = bookmarks
	removed := m.filterLocked()
	m.mu.Unlock()
	m.cleanupOrphans(ctx, removed)
	m.notify()
	return nil
}

// RefreshUploads replaces the upload snapshot.
func (m *Mirror) RefreshUploads(ctx context.Context) error {
	uploads, err := m.backend.ListUploads(ctx)
	if err != nil {
		slog.Warn("upload refresh failed, keeping snapshot", "error", err)
		return err
	}
	m.mu.Lock()
	m.uploads = uploads
	m.mu.Unlock()
	m.notify()
	return nil
}

// RefreshAll pulls chats, bookmarks, and uploads. The first error wins
// but all three refreshes are attempted.
func (m *Mirror) RefreshAll(ctx context.Context) error {
	var firstErr error
	for _, refresh := range []func(context.Context) error{
		m.RefreshChats, m.RefreshBookmarks, m.RefreshUploads,
	} {
		if err := refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// UpsertChat inserts or replaces one chat at the front of the snapshot.
// Orphans pruned here are deleted on the server by the next refresh pass.
func (m *Mirror) UpsertChat(chat domain.Chat) {
	m.mu.Lock()
	next := make([]domain.Chat, 0, len(m.chats)+1)
	next = append(next, chat)
	for _, c := range m.chats {
		if c.ID != chat.ID {
			next = append(next, c)
		}
	}
	m.chats = next
	m.filterLocked()
	m.mu.Unlock()
	m.notify()
}

// RenameChat updates one chat name in place.
func (m *Mirror) RenameChat(chatID, newName string) {
	m.mu.Lock()
	for i := range m.chats {
		if m.chats[i].ID == chatID {
			m.chats[i].ChatName = newName
			break
		}
	}
	m.filterLocked()
	m.mu.Unlock()
	m.notify()
}

// RemoveChat drops one chat from the snapshot and prunes its bookmarks.
func (m *Mirror) RemoveChat(ctx context.Context, chatID string) {
	m.mu.Lock()
	next := m.chats[:0]
	for _, c := range m.chats {
		if c.ID != chatID {
			next = append(next, c)
		}
	}
	m.chats = next
	removed := m.filterLocked()
	m.mu.Unlock()
	m.cleanupOrphans(ctx, removed)
	m.notify()
}

// MessageBookmark maps a message ID to its bookmark, if any.
func (m *Mirror) MessageBookmark(messageID string) (domain.Bookmark, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookmarks {
		if b.LinkedMessageID == messageID {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

// AddBookmark appends one bookmark to the snapshot.
func (m *Mirror) AddBookmark(b domain.Bookmark) {
	m.mu.Lock()
	m.bookmarks = append([]domain.Bookmark{b}, m.bookmarks...)
	m.mu.Unlock()
	m.notify()
}

// RemoveBookmark drops one bookmark from the snapshot.
func (m *Mirror) RemoveBookmark(bookmarkID string) {
	m.mu.Lock()
	next := m.bookmarks[:0]
	for _, b := range m.bookmarks {
		if b.ID != bookmarkID {
			next = append(next, b)
		}
	}
	m.bookmarks = next
	m.mu.Unlock()
	m.notify()
}

// filterLocked applies the orphan filter to the bookmark snapshot.
// Caller holds the write lock.
func (m *Mirror) filterLocked() []domain.Bookmark {
	kept, removed := PruneOrphanBookmarks(m.chats, m.bookmarks)
	m.bookmarks = kept
	return removed
}

// cleanupOrphans deletes pruned bookmarks on the server. Failures are
// logged and retried implicitly on the next filter pass.
func (m *Mirror) cleanupOrphans(ctx context.Context, removed []domain.Bookmark) {
	for _, b := range removed {
		if err := m.backend.DeleteBookmark(ctx, b.ID); err != nil && !apiclient.IsNotFound(err) {
			slog.Warn("orphan bookmark cleanup failed", "bookmarkId", b.ID, "error", err)
		}
	}
}

func (m *Mirror) notify() {
	m.mu.RLock()
	listeners := make([]func(), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
