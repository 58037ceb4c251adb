package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lawtutor/internal/apiclient"
	"lawtutor/internal/domain"
)

// State is the controller lifecycle state.
type State int

const (
	StateNoChat State = iota
	StateChatActive
)

// DefaultSyncInterval is how often the controller re-pulls server state.
const DefaultSyncInterval = 30 * time.Second

// Controller drives one user's chat session: which chat is open, which
// files are staged for the next message, and when the local mirror
// re-syncs with the server.
type Controller struct {
	backend Backend
	mirror  *Mirror
	render  *Renderer
	active  ActiveChatStore
	userID  string

	syncInterval time.Duration

	mu          sync.Mutex
	state       State
	activeChat  string
	stagedFiles []domain.StagedFile
}

// ControllerConfig wires the controller dependencies.
type ControllerConfig struct {
	Backend      Backend
	ActiveStore  ActiveChatStore
	UserID       string
	SyncInterval time.Duration
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	active := cfg.ActiveStore
	if active == nil {
		active = NewMemoryActiveChatStore()
	}
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Controller{
		backend:      cfg.Backend,
		mirror:       NewMirror(cfg.Backend),
		render:       NewRenderer(),
		active:       active,
		userID:       cfg.UserID,
		syncInterval: interval,
	}, nil
}

// Mirror exposes the local state snapshots.
func (c *Controller) Mirror() *Mirror { return c.mirror }

// Renderer exposes the transcript view.
func (c *Controller) Renderer() *Renderer { return c.render }

// State reports whether a chat is open.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveChatID returns the open chat, or "" in the NoChat state.
func (c *Controller) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeChat
}

// StagedFiles returns the files queued for the next message.
func (c *Controller) StagedFiles() []domain.StagedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.StagedFile, len(c.stagedFiles))
	copy(out, c.stagedFiles)
	return out
}

// StageFile queues a file for the next outgoing message.
func (c *Controller) StageFile(f domain.StagedFile) {
	c.mu.Lock()
	c.stagedFiles = append(c.stagedFiles, f)
	c.mu.Unlock()
}

// ClearStagedFiles drops all queued files.
func (c *Controller) ClearStagedFiles() {
	c.mu.Lock()
	c.stagedFiles = nil
	c.mu.Unlock()
}

// Restore brings a fresh session back to where the user left off: the
// previously active chat when it still exists, otherwise the most
// recently updated chat, otherwise a brand new one.
func (c *Controller) Restore(ctx context.Context) error {
	if err := c.mirror.RefreshAll(ctx); err != nil {
		return err
	}

	saved, err := c.active.LoadActiveChat(ctx, c.userID)
	if err != nil {
		slog.Warn("active chat load failed", "error", err)
		saved = ""
	}
	if saved != "" {
		if _, ok := c.mirror.Chat(saved); ok {
			return c.SwitchToChat(ctx, saved)
		}
	}
	if chats := c.mirror.Chats(); len(chats) > 0 {
		return c.SwitchToChat(ctx, mostRecent(chats).ID)
	}
	_, err = c.CreateNewChat(ctx, "")
	return err
}

// SwitchToChat opens a chat, loading its transcript. Staged files belong
// to the chat they were picked in and are dropped on switch.
func (c *Controller) SwitchToChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.stagedFiles = nil
	c.activeChat = chatID
	c.state = StateChatActive
	c.mu.Unlock()

	generation := c.render.SetActiveChat(chatID)

	chat, msgs, err := c.backend.GetChat(ctx, chatID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return c.rehome(ctx, chatID)
		}
		return err
	}
	// A switch may have raced this load; ApplyMessages drops stale results.
	if c.render.ApplyMessages(chatID, generation, msgs) {
		c.mirror.UpsertChat(chat)
		if err := c.active.SaveActiveChat(ctx, c.userID, chatID); err != nil {
			slog.Warn("active chat save failed", "error", err)
		}
	}
	return nil
}

// CreateNewChat makes a chat and opens it. The new chat fronts the list
// immediately without waiting for the next sync.
func (c *Controller) CreateNewChat(ctx context.Context, name string) (string, error) {
	chatID, err := c.backend.CreateChat(ctx, name)
	if err != nil {
		return "", err
	}
	if err := c.SwitchToChat(ctx, chatID); err != nil {
		return "", err
	}
	return chatID, nil
}

// RenameChat renames on the server and mirrors the change locally.
func (c *Controller) RenameChat(ctx context.Context, chatID, newName string) error {
	if err := c.backend.RenameChat(ctx, chatID, newName); err != nil {
		return err
	}
	c.mirror.RenameChat(chatID, newName)
	return nil
}

// DeleteChat removes a chat. Deleting the open chat re-homes the session
// onto the most recent remaining chat, creating one when none are left.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.backend.DeleteChat(ctx, chatID); err != nil && !apiclient.IsNotFound(err) {
		return err
	}
	return c.rehome(ctx, chatID)
}

func (c *Controller) rehome(ctx context.Context, deletedChatID string) error {
	c.mirror.RemoveChat(ctx, deletedChatID)

	c.mu.Lock()
	wasActive := c.activeChat == deletedChatID
	if wasActive {
		c.activeChat = ""
		c.state = StateNoChat
	}
	c.mu.Unlock()
	if !wasActive {
		return nil
	}
	if err := c.active.ClearActiveChat(ctx, c.userID); err != nil {
		slog.Warn("active chat clear failed", "error", err)
	}
	if chats := c.mirror.Chats(); len(chats) > 0 {
		return c.SwitchToChat(ctx, mostRecent(chats).ID)
	}
	_, err := c.CreateNewChat(ctx, "")
	return err
}

// Send posts the composed message with any staged files, renders both
// sides of the exchange, and clears the staging area.
func (c *Controller) Send(ctx context.Context, message, chapter string) (apiclient.SendMessageResponse, error) {
	c.mu.Lock()
	chatID := c.activeChat
	staged := c.stagedFiles
	c.mu.Unlock()

	res, err := c.backend.SendMessage(ctx, apiclient.SendMessageRequest{
		ChatID:  chatID,
		Message: message,
		Chapter: chapter,
		Files:   staged,
	})
	if err != nil {
		return apiclient.SendMessageResponse{}, err
	}

	c.ClearStagedFiles()

	// The server creates a chat when none was open or the old one vanished.
	if res.ChatID != chatID {
		if err := c.SwitchToChat(ctx, res.ChatID); err != nil {
			return res, err
		}
	} else {
		attachments := make([]domain.Attachment, 0, len(staged))
		for _, f := range staged {
			att := domain.Attachment{UploadID: f.ID, FileName: f.Name, MimeType: f.Type}
			if f.ID != "" {
				att.DownloadRoute = "/api/files/" + f.ID
			}
			attachments = append(attachments, att)
		}
		c.render.Append(res.ChatID, domain.Message{
			ID:              res.UserMessageID,
			Sender:          domain.SenderUser,
			Message:         message,
			Timestamp:       res.Timestamp,
			Chapter:         res.Chapter,
			FileAttachments: attachments,
		})
		c.render.Append(res.ChatID, domain.Message{
			ID:                res.AIMessageID,
			Sender:            domain.SenderTutor,
			Message:           res.Reply,
			Timestamp:         res.Timestamp,
			Chapter:           res.Chapter,
			StructuredContent: res.StructuredContent,
		})
	}

	if chat, ok := c.mirror.Chat(res.ChatID); ok {
		chat.LastUpdated = res.Timestamp
		if res.ChatRenamed {
			chat.ChatName = res.NewChatName
		}
		c.mirror.UpsertChat(chat)
	}
	return res, nil
}

// EditMessage rewrites a sent question. The new text shows immediately
// and the stale reply dims until the server answers; on failure both
// return to their previous state.
func (c *Controller) EditMessage(ctx context.Context, messageID, newText string) error {
	c.mu.Lock()
	chatID := c.activeChat
	c.mu.Unlock()
	if chatID == "" {
		return fmt.Errorf("no active chat")
	}

	c.render.BeginEdit(messageID, newText)
	res, err := c.backend.EditMessage(ctx, chatID, messageID, newText)
	if err != nil {
		c.render.RollbackEdit(messageID)
		return err
	}
	c.render.ResolveEdit(chatID, messageID, newText, res.ReplacesMessageID, domain.Message{
		ID:        res.AIMessageID,
		Sender:    domain.SenderTutor,
		Message:   res.Reply,
		Timestamp: res.Timestamp,
	})
	return nil
}

// BookmarkMessage saves a bookmark for a rendered message.
func (c *Controller) BookmarkMessage(ctx context.Context, messageID, snippet string, kind domain.BookmarkType) (domain.Bookmark, error) {
	c.mu.Lock()
	chatID := c.activeChat
	c.mu.Unlock()
	if chatID == "" {
		return domain.Bookmark{}, fmt.Errorf("no active chat")
	}
	saved, err := c.backend.SaveBookmark(ctx, domain.Bookmark{
		LinkedMessageID: messageID,
		Snippet:         snippet,
		Type:            kind,
		ChatID:          chatID,
	})
	if err != nil {
		return domain.Bookmark{}, err
	}
	c.mirror.AddBookmark(saved)
	c.render.SetBookmarked(messageID, true)
	return saved, nil
}

// RemoveBookmark deletes a bookmark and unflags its message.
func (c *Controller) RemoveBookmark(ctx context.Context, bookmarkID string) error {
	var linked string
	for _, b := range c.mirror.Bookmarks() {
		if b.ID == bookmarkID {
			linked = b.LinkedMessageID
			break
		}
	}
	if err := c.backend.DeleteBookmark(ctx, bookmarkID); err != nil && !apiclient.IsNotFound(err) {
		return err
	}
	c.mirror.RemoveBookmark(bookmarkID)
	if linked != "" {
		c.render.SetBookmarked(linked, false)
	}
	return nil
}

// Sync re-pulls server state and reloads the open transcript. A vanished
// active chat re-homes the session.
func (c *Controller) Sync(ctx context.Context) error {
	if err := c.mirror.RefreshAll(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	chatID := c.activeChat
	c.mu.Unlock()
	if chatID == "" {
		return nil
	}
	if _, ok := c.mirror.Chat(chatID); !ok {
		return c.rehome(ctx, chatID)
	}

	generation := c.render.Generation()
	_, msgs, err := c.backend.GetChat(ctx, chatID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return c.rehome(ctx, chatID)
		}
		slog.Warn("transcript sync failed, keeping snapshot", "chatId", chatID, "error", err)
		return err
	}
	c.render.ApplyMessages(chatID, generation, msgs)
	return nil
}

// Run syncs on a fixed interval until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				slog.Warn("periodic sync failed", "error", err)
			}
		}
	}
}

func mostRecent(chats []domain.Chat) domain.Chat {
	best := chats[0]
	for _, c := range chats[1:] {
		if c.LastUpdated.After(best.LastUpdated) {
			best = c
		}
	}
	return best
}
