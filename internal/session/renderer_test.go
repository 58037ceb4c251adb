package session

import (
	"strings"
	"testing"
	"time"

	"lawtutor/internal/domain"
)

func msgAt(id string, sender domain.Sender, text string, sec int) domain.Message {
	return domain.Message{
		ID:        id,
		Sender:    sender,
		Message:   text,
		Timestamp: time.Date(2025, 6, 1, 10, 0, sec, 0, time.UTC),
	}
}

func TestRendererAppliesLoadForActiveChat(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")

	ok := r.ApplyMessages("c1", gen, []domain.Message{
		msgAt("m1", domain.SenderUser, "hi", 1),
		msgAt("m2", domain.SenderTutor, "hello", 2),
	})
	if !ok {
		t.Fatal("load for active chat must apply")
	}
	transcript := r.Transcript()
	if len(transcript) != 2 || transcript[0].MessageID != "m1" {
		t.Fatalf("transcript wrong: %+v", transcript)
	}
}

func TestRendererDiscardsStaleLoad(t *testing.T) {
	r := NewRenderer()
	gen1 := r.SetActiveChat("c1")
	r.SetActiveChat("c2")

	if r.ApplyMessages("c1", gen1, []domain.Message{msgAt("m1", domain.SenderUser, "late", 1)}) {
		t.Fatal("load for a switched-away chat must be discarded")
	}
	if len(r.Transcript()) != 0 {
		t.Fatal("stale load leaked into transcript")
	}
}

func TestRendererDiscardsOldGeneration(t *testing.T) {
	r := NewRenderer()
	gen1 := r.SetActiveChat("c1")
	r.SetActiveChat("c2")
	r.SetActiveChat("c1") // back again, new generation

	if r.ApplyMessages("c1", gen1, []domain.Message{msgAt("m1", domain.SenderUser, "stale", 1)}) {
		t.Fatal("load from an earlier visit must be discarded")
	}
}

func TestRendererDeduplicatesAppends(t *testing.T) {
	r := NewRenderer()
	r.SetActiveChat("c1")

	msg := msgAt("m1", domain.SenderUser, "once", 1)
	if !r.Append("c1", msg) {
		t.Fatal("first append should land")
	}
	if r.Append("c1", msg) {
		t.Fatal("duplicate append should be dropped")
	}
	if r.Append("c2", msgAt("m2", domain.SenderUser, "wrong chat", 2)) {
		t.Fatal("append for inactive chat should be dropped")
	}
	if len(r.Transcript()) != 1 {
		t.Fatalf("transcript should hold one message, got %d", len(r.Transcript()))
	}
}

func TestRendererSynthesizesKeysForMissingIDs(t *testing.T) {
	r := NewRenderer()
	r.SetActiveChat("c1")

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first := domain.Message{Sender: domain.SenderUser, Message: "a", Timestamp: at}
	second := domain.Message{Sender: domain.SenderUser, Message: "b", Timestamp: at}
	if !r.Append("c1", first) || !r.Append("c1", second) {
		t.Fatal("messages without IDs must both render")
	}
	transcript := r.Transcript()
	if transcript[0].Key == transcript[1].Key {
		t.Fatalf("synthesized keys must differ: %q", transcript[0].Key)
	}
	if transcript[0].Key == "" {
		t.Fatal("key must not be empty")
	}
}

func TestRendererStructuredContentPrepended(t *testing.T) {
	r := NewRenderer()
	r.SetActiveChat("c1")

	msg := msgAt("m1", domain.SenderTutor, "Here is my summary.", 1)
	msg.StructuredContent = []domain.FileContent{
		{Filename: "outline.txt", Content: "line one\nline two", Type: "text"},
	}
	r.Append("c1", msg)

	text := r.Transcript()[0].Text
	if !strings.HasPrefix(text, "[outline.txt]\nline one\nline two") {
		t.Fatalf("structured content should lead the text: %q", text)
	}
	if !strings.HasSuffix(text, "Here is my summary.") {
		t.Fatalf("reply text should follow: %q", text)
	}
}

func TestRendererAttachmentBubbles(t *testing.T) {
	r := NewRenderer()
	r.SetActiveChat("c1")

	msg := msgAt("m1", domain.SenderUser, "see attached", 1)
	msg.FileAttachments = []domain.Attachment{
		{FileName: "brief.pdf", DownloadRoute: "/api/files/u1"},
		{FileName: "notes.txt"},
	}
	r.Append("c1", msg)

	got := r.Transcript()[0].Attachments
	if len(got) != 2 || got[0].Name != "brief.pdf" || got[1].Name != "notes.txt" {
		t.Fatalf("attachment names wrong: %v", got)
	}
	if got[0].DownloadRoute != "/api/files/u1" {
		t.Fatalf("download reference lost: %v", got[0])
	}
	if got[1].DownloadRoute != "" {
		t.Fatalf("attachment without a file should have no reference: %v", got[1])
	}
}

func TestRendererEditLifecycle(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{
		msgAt("m1", domain.SenderUser, "original", 1),
		msgAt("m2", domain.SenderTutor, "old reply", 2),
	})

	r.BeginEdit("m1", "edited")
	transcript := r.Transcript()
	if transcript[0].Text != "edited" {
		t.Fatalf("edited text should show immediately: %+v", transcript[0])
	}
	if transcript[0].Dimmed {
		t.Fatal("the edited question itself must not dim")
	}
	if !transcript[1].Dimmed {
		t.Fatal("the stale reply should dim while the edit is pending")
	}

	ok := r.ResolveEdit("c1", "m1", "edited", "m2", msgAt("m3", domain.SenderTutor, "new reply", 3))
	if !ok {
		t.Fatal("resolve for active chat must apply")
	}
	transcript = r.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("expected edited pair, got %d", len(transcript))
	}
	if transcript[0].Text != "edited" || !transcript[0].Edited || transcript[0].Dimmed {
		t.Fatalf("user message state wrong: %+v", transcript[0])
	}
	if transcript[1].MessageID != "m3" || transcript[1].Dimmed {
		t.Fatalf("old reply should be replaced: %+v", transcript[1])
	}
	if _, pending := r.PendingEdit(); pending {
		t.Fatal("pending slot should be cleared")
	}
}

func TestRendererEditRollback(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{
		msgAt("m1", domain.SenderUser, "original", 1),
		msgAt("m2", domain.SenderTutor, "old reply", 2),
	})

	r.BeginEdit("m1", "changed")
	r.RollbackEdit("m1")
	transcript := r.Transcript()
	if transcript[0].Text != "original" {
		t.Fatalf("rollback should restore the question text: %+v", transcript[0])
	}
	if transcript[1].Dimmed {
		t.Fatalf("rollback should un-dim the reply: %+v", transcript[1])
	}
	if _, pending := r.PendingEdit(); pending {
		t.Fatal("pending slot should be cleared")
	}
}

func TestRendererEditWithoutFollowUpReply(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{msgAt("m1", domain.SenderUser, "original", 1)})

	r.BeginEdit("m1", "changed")
	if r.Transcript()[0].Text != "changed" {
		t.Fatal("edited text should show even when no reply follows")
	}
	r.RollbackEdit("m1")
	if r.Transcript()[0].Text != "original" {
		t.Fatal("rollback should restore the text")
	}
}

func TestRendererSecondEditWinsPendingSlot(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{
		msgAt("m1", domain.SenderUser, "first", 1),
		msgAt("m2", domain.SenderTutor, "first reply", 2),
		msgAt("m3", domain.SenderUser, "second", 3),
		msgAt("m4", domain.SenderTutor, "second reply", 4),
	})

	r.BeginEdit("m1", "first edited")
	r.BeginEdit("m3", "second edited")

	transcript := r.Transcript()
	if transcript[0].Text != "first" || transcript[1].Dimmed {
		t.Fatalf("first edit should be rolled back: %+v %+v", transcript[0], transcript[1])
	}
	if transcript[2].Text != "second edited" || !transcript[3].Dimmed {
		t.Fatalf("second edit should hold the pending slot: %+v %+v", transcript[2], transcript[3])
	}
	id, pending := r.PendingEdit()
	if !pending || id != "m3" {
		t.Fatalf("pending slot wrong: %q %v", id, pending)
	}
}

func TestRendererResolveEditForInactiveChatDropped(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{msgAt("m1", domain.SenderUser, "original", 1)})
	r.BeginEdit("m1", "edited")
	r.SetActiveChat("c2")

	if r.ResolveEdit("c1", "m1", "edited", "", msgAt("m3", domain.SenderTutor, "reply", 3)) {
		t.Fatal("resolve for an inactive chat must be dropped")
	}
}

func TestRendererBookmarkFlag(t *testing.T) {
	r := NewRenderer()
	gen := r.SetActiveChat("c1")
	r.ApplyMessages("c1", gen, []domain.Message{msgAt("m1", domain.SenderTutor, "flag me", 1)})

	r.SetBookmarked("m1", true)
	if !r.Transcript()[0].Bookmarked {
		t.Fatal("bookmark flag not set")
	}
	r.SetBookmarked("m1", false)
	if r.Transcript()[0].Bookmarked {
		t.Fatal("bookmark flag not cleared")
	}
}
