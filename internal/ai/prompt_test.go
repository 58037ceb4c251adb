package ai

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptIncludesChapter(t *testing.T) {
	got := BuildSystemPrompt("Contract Law", "What is consideration?", nil)
	if !strings.Contains(got, "Contract Law") {
		t.Fatalf("chapter missing from prompt: %q", got)
	}
}

func TestBuildSystemPromptWordLimit(t *testing.T) {
	got := BuildSystemPrompt("", "Explain negligence in 150 words", nil)
	if !strings.Contains(got, "within 150 words") {
		t.Fatalf("word limit hint missing: %q", got)
	}
}

func TestBuildSystemPromptEssayHint(t *testing.T) {
	got := BuildSystemPrompt("", "Write an essay on strict liability", nil)
	if !strings.Contains(got, "thorough") {
		t.Fatalf("essay hint missing: %q", got)
	}
}

func TestBuildSystemPromptAppendsDocuments(t *testing.T) {
	got := BuildSystemPrompt("", "Summarise this", []string{"Donoghue v Stevenson facts", ""})
	if !strings.Contains(got, "Donoghue v Stevenson facts") {
		t.Fatalf("document text missing: %q", got)
	}
}

func TestStaticGeneratorEchoesQuestion(t *testing.T) {
	g := &StaticGenerator{}
	reply, err := g.GenerateReply(nil, "", []ChatTurn{{Role: "user", Content: "What is mens rea?"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "What is mens rea?") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if _, err := g.GenerateReply(nil, "", nil); err == nil {
		t.Fatal("expected error for empty turns")
	}
}
