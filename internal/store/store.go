package store

import (
	"errors"
	"time"

	"lawtutor/internal/domain"
)

// ErrNotFound is returned when the addressed record does not exist for the
// given user.
var ErrNotFound = errors.New("store: record not found")

// Store defines per-user persistence for chats, messages, bookmarks, and
// uploads. All collections are scoped by the user identifier supplied with
// every request; tenant isolation beyond that scoping is the database's job.
type Store interface {
	// chats
	CreateChat(userID string, chat domain.Chat) error
	ListChats(userID string) ([]domain.Chat, error)
	GetChat(userID, chatID string) (domain.Chat, bool, error)
	RenameChat(userID, chatID, newName string) error
	TouchChat(userID, chatID string, at time.Time) error
	DeleteChat(userID, chatID string) error

	// messages
	AppendMessage(userID, chatID string, msg domain.Message) error
	ListMessages(userID, chatID string) ([]domain.Message, error)
	ListAllMessages(userID string) ([]domain.Message, error)
	UpdateMessageText(userID, chatID, messageID, text string, editedAt time.Time) error
	SetMessageBookmarked(userID, messageID string, bookmarked bool) error
	DeleteMessage(userID, chatID, messageID string) error
	DeleteAllMessages(userID string) error

	// bookmarks
	SaveBookmark(userID string, b domain.Bookmark) error
	ListBookmarks(userID string) ([]domain.Bookmark, error)
	ListChatBookmarks(userID, chatID string) ([]domain.Bookmark, error)
	DeleteBookmark(userID, bookmarkID string) error
	DeleteAllBookmarks(userID string) error

	// uploads
	SaveUpload(userID string, u domain.Upload) error
	ListUploads(userID string) ([]domain.Upload, error)
	GetUpload(userID, uploadID string) (domain.Upload, bool, error)
	DeleteUpload(userID, uploadID string) error
}
