package session

import "lawtutor/internal/domain"

// PruneOrphanBookmarks splits bookmarks into those whose chat still exists
// and those left dangling by a chat deletion. Bookmarks carrying the
// legacy "unknown" chat ID are never treated as orphans. The function is
// pure and idempotent: running it twice removes nothing new.
func PruneOrphanBookmarks(chats []domain.Chat, bookmarks []domain.Bookmark) (kept, removed []domain.Bookmark) {
	live := make(map[string]struct{}, len(chats))
	for _, c := range chats {
		live[c.ID] = struct{}{}
	}
	for _, b := range bookmarks {
		if b.ChatID == domain.UnknownChatID {
			kept = append(kept, b)
			continue
		}
		if _, ok := live[b.ChatID]; ok {
			kept = append(kept, b)
		} else {
			removed = append(removed, b)
		}
	}
	return kept, removed
}
