package store

import (
	"sort"
	"sync"
	"time"

	"lawtutor/internal/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	chats     map[string]map[string]domain.Chat    // userID -> chatID -> chat
	messages  map[string]map[string]domain.Message // userID -> messageID -> message
	msgChat   map[string]map[string]string         // userID -> messageID -> chatID
	bookmarks map[string]map[string]domain.Bookmark
	uploads   map[string]map[string]domain.Upload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:     make(map[string]map[string]domain.Chat),
		messages:  make(map[string]map[string]domain.Message),
		msgChat:   make(map[string]map[string]string),
		bookmarks: make(map[string]map[string]domain.Bookmark),
		uploads:   make(map[string]map[string]domain.Upload),
	}
}

func (s *MemoryStore) CreateChat(userID string, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chats[userID] == nil {
		s.chats[userID] = make(map[string]domain.Chat)
	}
	s.chats[userID][chat.ID] = chat
	return nil
}

func (s *MemoryStore) ListChats(userID string) ([]domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chat, 0, len(s.chats[userID]))
	for _, c := range s.chats[userID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

func (s *MemoryStore) GetChat(userID, chatID string) (domain.Chat, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[userID][chatID]
	return c, ok, nil
}

func (s *MemoryStore) RenameChat(userID, chatID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[userID][chatID]
	if !ok {
		return ErrNotFound
	}
	c.ChatName = newName
	s.chats[userID][chatID] = c
	return nil
}

func (s *MemoryStore) TouchChat(userID, chatID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[userID][chatID]
	if !ok {
		return nil
	}
	c.LastUpdated = at
	s.chats[userID][chatID] = c
	return nil
}

func (s *MemoryStore) DeleteChat(userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[userID][chatID]; !ok {
		return ErrNotFound
	}
	delete(s.chats[userID], chatID)
	for id, cid := range s.msgChat[userID] {
		if cid == chatID {
			delete(s.messages[userID], id)
			delete(s.msgChat[userID], id)
		}
	}
	for id, b := range s.bookmarks[userID] {
		if b.ChatID == chatID {
			delete(s.bookmarks[userID], id)
		}
	}
	return nil
}

func (s *MemoryStore) AppendMessage(userID, chatID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages[userID] == nil {
		s.messages[userID] = make(map[string]domain.Message)
		s.msgChat[userID] = make(map[string]string)
	}
	s.messages[userID][msg.ID] = msg
	s.msgChat[userID][msg.ID] = chatID
	return nil
}

func (s *MemoryStore) ListMessages(userID, chatID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for id, m := range s.messages[userID] {
		if s.msgChat[userID][id] == chatID {
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryStore) ListAllMessages(userID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages[userID] {
		out = append(out, m)
	}
	sortMessages(out)
	return out, nil
}

func (s *MemoryStore) UpdateMessageText(userID, chatID, messageID, text string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[userID][messageID]
	if !ok || s.msgChat[userID][messageID] != chatID {
		return ErrNotFound
	}
	m.Message = text
	m.EditedAt = &editedAt
	s.messages[userID][messageID] = m
	return nil
}

func (s *MemoryStore) SetMessageBookmarked(userID, messageID string, bookmarked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[userID][messageID]
	if !ok {
		return nil
	}
	m.Bookmarked = bookmarked
	s.messages[userID][messageID] = m
	return nil
}

func (s *MemoryStore) DeleteMessage(userID, chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgChat[userID][messageID] != chatID {
		return nil
	}
	delete(s.messages[userID], messageID)
	delete(s.msgChat[userID], messageID)
	return nil
}

func (s *MemoryStore) DeleteAllMessages(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[userID] = make(map[string]domain.Message)
	s.msgChat[userID] = make(map[string]string)
	return nil
}

func (s *MemoryStore) SaveBookmark(userID string, b domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookmarks[userID] == nil {
		s.bookmarks[userID] = make(map[string]domain.Bookmark)
	}
	s.bookmarks[userID][b.ID] = b
	return nil
}

func (s *MemoryStore) ListBookmarks(userID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Bookmark, 0, len(s.bookmarks[userID]))
	for _, b := range s.bookmarks[userID] {
		out = append(out, b)
	}
	sortBookmarks(out)
	return out, nil
}

func (s *MemoryStore) ListChatBookmarks(userID, chatID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bookmark
	for _, b := range s.bookmarks[userID] {
		if b.ChatID == chatID {
			out = append(out, b)
		}
	}
	sortBookmarks(out)
	return out, nil
}

func (s *MemoryStore) DeleteBookmark(userID, bookmarkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookmarks[userID][bookmarkID]; !ok {
		return ErrNotFound
	}
	delete(s.bookmarks[userID], bookmarkID)
	return nil
}

func (s *MemoryStore) DeleteAllBookmarks(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[userID] = make(map[string]domain.Bookmark)
	return nil
}

func (s *MemoryStore) SaveUpload(userID string, u domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploads[userID] == nil {
		s.uploads[userID] = make(map[string]domain.Upload)
	}
	s.uploads[userID][u.ID] = u
	return nil
}

func (s *MemoryStore) ListUploads(userID string) ([]domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Upload, 0, len(s.uploads[userID]))
	for _, u := range s.uploads[userID] {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetUpload(userID, uploadID string) (domain.Upload, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[userID][uploadID]
	return u, ok, nil
}

func (s *MemoryStore) DeleteUpload(userID, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[userID][uploadID]; !ok {
		return ErrNotFound
	}
	delete(s.uploads[userID], uploadID)
	return nil
}

func sortMessages(msgs []domain.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func sortBookmarks(bs []domain.Bookmark) {
	sort.Slice(bs, func(i, j int) bool {
		return bs[i].Timestamp.After(bs[j].Timestamp)
	})
}
