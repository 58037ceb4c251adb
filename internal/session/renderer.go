package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawtutor/internal/domain"
)

// DisplayMessage is one rendered transcript entry.
type DisplayMessage struct {
	// Key uniquely identifies the entry for deduplication. It is the
	// message ID when the server assigned one, otherwise a synthesized
	// key from timestamp, arrival ordinal, and a per-renderer salt.
	Key         string
	MessageID   string
	Sender      domain.Sender
	Text        string
	Timestamp   time.Time
	Chapter     string
	Bookmarked  bool
	Edited      bool
	Attachments []AttachmentRef
	// Dimmed marks the message as awaiting an edit round trip.
	Dimmed bool
}

// AttachmentRef is one attachment bubble under a user message. A bubble
// with a DownloadRoute opens the file when clicked.
type AttachmentRef struct {
	Name          string
	DownloadRoute string
}

// Renderer builds the visible transcript for the active chat. Incoming
// message loads are tagged with the chat they were requested for and a
// generation counter; results for a chat that is no longer active are
// discarded instead of bleeding into the current transcript.
type Renderer struct {
	mu         sync.Mutex
	salt       string
	activeChat string
	generation uint64
	ordinal    uint64
	transcript []DisplayMessage
	seen       map[string]map[string]struct{}
	pending    *pendingEdit
}

type pendingEdit struct {
	chatID       string
	messageID    string
	originalText string
	// dimKey is the transcript key of the stale tutor reply dimmed while
	// the regeneration is in flight. Empty when the edited message had no
	// follow-up reply.
	dimKey string
}

func NewRenderer() *Renderer {
	return &Renderer{
		salt: uuid.NewString(),
		seen: make(map[string]map[string]struct{}),
	}
}

// SetActiveChat switches the transcript to another chat and returns the
// generation token loads for that chat must carry. A pending edit in the
// previous chat is abandoned.
func (r *Renderer) SetActiveChat(chatID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeChat != chatID {
		r.activeChat = chatID
		r.transcript = nil
		r.pending = nil
	}
	r.generation++
	return r.generation
}

// ActiveChat reports which chat the transcript belongs to.
func (r *Renderer) ActiveChat() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeChat
}

// Generation returns the current load token.
func (r *Renderer) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// ApplyMessages replaces the transcript with a full message load. The
// result is dropped when the load was started for a different chat or an
// older generation.
func (r *Renderer) ApplyMessages(chatID string, generation uint64, msgs []domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chatID != r.activeChat || generation != r.generation {
		return false
	}
	r.transcript = nil
	r.seen[chatID] = make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		r.appendLocked(chatID, msg)
	}
	return true
}

// Append adds one message to the transcript if the chat is still active
// and the message has not been rendered before.
func (r *Renderer) Append(chatID string, msg domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chatID != r.activeChat {
		return false
	}
	return r.appendLocked(chatID, msg)
}

func (r *Renderer) appendLocked(chatID string, msg domain.Message) bool {
	key := r.dedupKey(msg)
	seen := r.seen[chatID]
	if seen == nil {
		seen = make(map[string]struct{})
		r.seen[chatID] = seen
	}
	if _, dup := seen[key]; dup {
		return false
	}
	seen[key] = struct{}{}
	r.transcript = append(r.transcript, renderMessage(key, msg))
	return true
}

// Transcript returns a copy of the rendered messages.
func (r *Renderer) Transcript() []DisplayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DisplayMessage, len(r.transcript))
	copy(out, r.transcript)
	return out
}

// SetBookmarked flips the bookmark marker on one rendered message.
func (r *Renderer) SetBookmarked(messageID string, bookmarked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.transcript {
		if r.transcript[i].MessageID == messageID {
			r.transcript[i].Bookmarked = bookmarked
			return
		}
	}
}

// BeginEdit stages an optimistic edit: the user message shows the new
// text immediately and the tutor reply that followed it dims until the
// regeneration round trip finishes. Only one edit can be pending;
// starting a second rolls the first back.
func (r *Renderer) BeginEdit(messageID, newText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		r.rollbackPendingLocked()
	}
	pending := &pendingEdit{chatID: r.activeChat, messageID: messageID}
	for i := range r.transcript {
		if r.transcript[i].MessageID != messageID {
			continue
		}
		pending.originalText = r.transcript[i].Text
		r.transcript[i].Text = newText
		for j := i + 1; j < len(r.transcript); j++ {
			if r.transcript[j].Sender == domain.SenderTutor {
				pending.dimKey = r.transcript[j].Key
				r.transcript[j].Dimmed = true
				break
			}
		}
		break
	}
	r.pending = pending
}

// ResolveEdit applies a successful edit: the user message keeps its new
// text and is marked edited, the stale tutor reply disappears, and the
// fresh reply is appended. A resolve for a chat that is no longer
// active is dropped.
func (r *Renderer) ResolveEdit(chatID, messageID, newText, replacesMessageID string, reply domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chatID != r.activeChat {
		return false
	}
	for i := range r.transcript {
		if r.transcript[i].MessageID == messageID {
			r.transcript[i].Text = newText
			r.transcript[i].Edited = true
		}
	}
	if r.pending != nil && r.pending.messageID == messageID {
		r.setDimmedByKeyLocked(r.pending.dimKey, false)
		r.pending = nil
	}
	if replacesMessageID != "" {
		next := r.transcript[:0]
		for _, dm := range r.transcript {
			if dm.MessageID != replacesMessageID {
				next = append(next, dm)
			}
		}
		r.transcript = next
	}
	r.appendLocked(chatID, reply)
	return true
}

// RollbackEdit undoes a failed edit: the user message gets its original
// text back and the dimmed tutor reply returns to normal.
func (r *Renderer) RollbackEdit(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil && r.pending.messageID == messageID {
		r.rollbackPendingLocked()
	}
}

// rollbackPendingLocked restores the pending edit's original text and
// un-dims its stale reply. Caller holds the lock.
func (r *Renderer) rollbackPendingLocked() {
	for i := range r.transcript {
		if r.transcript[i].MessageID == r.pending.messageID {
			r.transcript[i].Text = r.pending.originalText
			break
		}
	}
	r.setDimmedByKeyLocked(r.pending.dimKey, false)
	r.pending = nil
}

// PendingEdit reports the message ID of the in-flight edit, if any.
func (r *Renderer) PendingEdit() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return "", false
	}
	return r.pending.messageID, true
}

func (r *Renderer) setDimmedByKeyLocked(key string, dimmed bool) {
	if key == "" {
		return
	}
	for i := range r.transcript {
		if r.transcript[i].Key == key {
			r.transcript[i].Dimmed = dimmed
			return
		}
	}
}

// dedupKey prefers the server-assigned message ID. Messages that arrive
// without one get a synthesized key so they can still be deduplicated
// within this renderer instance.
func (r *Renderer) dedupKey(msg domain.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	r.ordinal++
	return fmt.Sprintf("%d|%d|%s", msg.Timestamp.UnixNano(), r.ordinal, r.salt)
}

// renderMessage builds the view model for one message. Extracted file
// content is prepended to the text with its line breaks preserved, and
// attachments become name bubbles.
func renderMessage(key string, msg domain.Message) DisplayMessage {
	var parts []string
	for _, fc := range msg.StructuredContent {
		parts = append(parts, "["+fc.Filename+"]\n"+fc.Content)
	}
	if msg.Message != "" {
		parts = append(parts, msg.Message)
	}
	refs := make([]AttachmentRef, 0, len(msg.FileAttachments))
	for _, att := range msg.FileAttachments {
		refs = append(refs, AttachmentRef{Name: att.FileName, DownloadRoute: att.DownloadRoute})
	}
	return DisplayMessage{
		Key:         key,
		MessageID:   msg.ID,
		Sender:      msg.Sender,
		Text:        strings.Join(parts, "\n\n"),
		Timestamp:   msg.Timestamp,
		Chapter:     msg.Chapter,
		Bookmarked:  msg.Bookmarked,
		Edited:      msg.EditedAt != nil,
		Attachments: refs,
	}
}
