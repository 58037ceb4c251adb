package app

import (
	"context"
	"fmt"
	"io"

	"lawtutor/internal/domain"
	"lawtutor/internal/store"
)

// Chapters is the syllabus shown in the chapter picker.
var Chapters = []string{
	"Constitutional Law",
	"Contract Law",
	"Criminal Law",
	"Tort Law",
	"Property Law",
	"Evidence",
	"Civil Procedure",
	"Administrative Law",
}

// History returns every message across the user's chats in timestamp
// order.
func (a *App) History(userID string) ([]domain.Message, error) {
	return a.store.ListAllMessages(userID)
}

// ClearHistory wipes all messages. Chats and bookmarks stay.
func (a *App) ClearHistory(userID string) error {
	return a.store.DeleteAllMessages(userID)
}

// TranscribeAudio turns a recorded question into text.
func (a *App) TranscribeAudio(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if a.transcriber == nil {
		return "", fmt.Errorf("transcription not configured")
	}
	return a.transcriber.Transcribe(ctx, filename, audio)
}

// CreateShareLink issues a read-only share token for one chat.
func (a *App) CreateShareLink(userID, chatID string) (string, error) {
	if a.shares == nil {
		return "", fmt.Errorf("share links not configured")
	}
	_, ok, err := a.store.GetChat(userID, chatID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", store.ErrNotFound
	}
	return a.shares.Sign(userID, chatID)
}

// ResolveShareLink loads the chat a share token points at.
func (a *App) ResolveShareLink(token string) (domain.Chat, []domain.Message, error) {
	if a.shares == nil {
		return domain.Chat{}, nil, fmt.Errorf("share links not configured")
	}
	claims, err := a.shares.Verify(token)
	if err != nil {
		return domain.Chat{}, nil, err
	}
	return a.GetChatWithMessages(claims.UserID, claims.ChatID)
}
