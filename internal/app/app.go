package app

import (
	"fmt"
	"strings"
	"time"

	"lawtutor/internal/ai"
	"lawtutor/internal/domain"
	"lawtutor/internal/events"
	"lawtutor/internal/sharelink"
	"lawtutor/internal/storage"
	"lawtutor/internal/store"
	"lawtutor/internal/util"
)

// DefaultChatName is the placeholder name for chats created implicitly by
// sending a message. Chats still carrying it are auto-renamed after the
// first exchange.
const DefaultChatName = "New Chat"

const defaultMaxUploadBytes = 16 << 20

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	DataDir     string

	Store       store.Store
	Blobs       storage.BlobStore
	Generator   ai.Generator
	Transcriber ai.Transcriber
	Events      *events.Publisher
	ShareLinks  *sharelink.Signer

	MaxUploadBytes int64
}

// App is the core application service wiring storage, extraction, and the
// tutor model together.
type App struct {
	store          store.Store
	blobs          storage.BlobStore
	gen            ai.Generator
	transcriber    ai.Transcriber
	events         *events.Publisher
	shares         *sharelink.Signer
	maxUploadBytes int64
}

// New constructs the application. Store and blob storage fall back to
// Postgres and local disk when not injected.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	blobs := cfg.Blobs
	if blobs == nil {
		var err error
		blobs, err = storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
	}

	gen := cfg.Generator
	if gen == nil {
		gen = &ai.StaticGenerator{}
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	return &App{
		store:          dataStore,
		blobs:          blobs,
		gen:            gen,
		transcriber:    cfg.Transcriber,
		events:         cfg.Events,
		shares:         cfg.ShareLinks,
		maxUploadBytes: maxUpload,
	}, nil
}

// MaxUploadBytes reports the configured upload size cap.
func (a *App) MaxUploadBytes() int64 { return a.maxUploadBytes }

// ListChats returns the user's chats, most recently updated first.
func (a *App) ListChats(userID string) ([]domain.Chat, error) {
	return a.store.ListChats(userID)
}

// CreateChat makes an empty chat.
func (a *App) CreateChat(userID, name string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultChatName
	}
	now := time.Now().UTC()
	chat := domain.Chat{
		ID:          util.NewID(),
		ChatName:    name,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := a.store.CreateChat(userID, chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// GetChatWithMessages loads one chat and its messages in timestamp order.
func (a *App) GetChatWithMessages(userID, chatID string) (domain.Chat, []domain.Message, error) {
	chat, ok, err := a.store.GetChat(userID, chatID)
	if err != nil {
		return domain.Chat{}, nil, err
	}
	if !ok {
		return domain.Chat{}, nil, store.ErrNotFound
	}
	msgs, err := a.store.ListMessages(userID, chatID)
	if err != nil {
		return domain.Chat{}, nil, err
	}
	return chat, msgs, nil
}

// RenameChat sets a new chat name. Empty names are rejected.
func (a *App) RenameChat(userID, chatID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return invalidf("newName is required")
	}
	return a.store.RenameChat(userID, chatID, newName)
}

// DeleteChat removes a chat with its messages and bookmarks.
func (a *App) DeleteChat(userID, chatID string) error {
	if err := a.store.DeleteChat(userID, chatID); err != nil {
		return err
	}
	a.publish(events.ChatDeleted, map[string]string{"userId": userID, "chatId": chatID})
	return nil
}
