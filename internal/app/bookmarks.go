package app

import (
	"strings"
	"time"

	"lawtutor/internal/domain"
	"lawtutor/internal/store"
	"lawtutor/internal/util"
)

// SaveBookmark stores a bookmark and flags the linked message.
func (a *App) SaveBookmark(userID string, b domain.Bookmark) (domain.Bookmark, error) {
	b.Snippet = strings.TrimSpace(b.Snippet)
	if b.LinkedMessageID == "" {
		return domain.Bookmark{}, invalidf("linkedMessageId is required")
	}
	if b.Snippet == "" {
		return domain.Bookmark{}, invalidf("snippet is required")
	}
	if b.ChatID == "" {
		return domain.Bookmark{}, invalidf("chatId is required")
	}
	if b.Type != domain.BookmarkUser && b.Type != domain.BookmarkTutor {
		return domain.Bookmark{}, invalidf("type must be user or tutor")
	}
	b.ID = util.NewID()
	b.Timestamp = time.Now().UTC()
	if err := a.store.SaveBookmark(userID, b); err != nil {
		return domain.Bookmark{}, err
	}
	if err := a.store.SetMessageBookmarked(userID, b.LinkedMessageID, true); err != nil {
		return domain.Bookmark{}, err
	}
	return b, nil
}

// ListBookmarks returns all bookmarks, newest first.
func (a *App) ListBookmarks(userID string) ([]domain.Bookmark, error) {
	return a.store.ListBookmarks(userID)
}

// SearchBookmarks filters bookmarks whose snippet contains the query,
// case-insensitively. An empty query returns everything.
func (a *App) SearchBookmarks(userID, query string) ([]domain.Bookmark, error) {
	all, err := a.store.ListBookmarks(userID)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}
	out := make([]domain.Bookmark, 0, len(all))
	for _, b := range all {
		if strings.Contains(strings.ToLower(b.Snippet), query) {
			out = append(out, b)
		}
	}
	return out, nil
}

// DeleteBookmark removes one bookmark and clears the message flag.
func (a *App) DeleteBookmark(userID, bookmarkID string) error {
	all, err := a.store.ListBookmarks(userID)
	if err != nil {
		return err
	}
	var linked string
	for _, b := range all {
		if b.ID == bookmarkID {
			linked = b.LinkedMessageID
			break
		}
	}
	if linked == "" {
		return store.ErrNotFound
	}
	if err := a.store.DeleteBookmark(userID, bookmarkID); err != nil {
		return err
	}
	return a.store.SetMessageBookmarked(userID, linked, false)
}

// ClearBookmarks removes every bookmark for the user.
func (a *App) ClearBookmarks(userID string) error {
	all, err := a.store.ListBookmarks(userID)
	if err != nil {
		return err
	}
	for _, b := range all {
		if err := a.store.SetMessageBookmarked(userID, b.LinkedMessageID, false); err != nil {
			return err
		}
	}
	return a.store.DeleteAllBookmarks(userID)
}
