package ai

import (
	"context"
	"fmt"
	"strings"
)

// ChatTurn is one prior exchange passed to the generator for context.
type ChatTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Generator produces tutor replies from a system prompt and conversation
// history. The last turn is the question being answered.
type Generator interface {
	GenerateReply(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error)
}

// StaticGenerator echoes a canned reply. Used in tests and when no
// generation backend is configured.
type StaticGenerator struct {
	Reply string
}

func (g *StaticGenerator) GenerateReply(_ context.Context, _ string, turns []ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("no question provided")
	}
	if g.Reply != "" {
		return g.Reply, nil
	}
	last := turns[len(turns)-1].Content
	return "Let's work through that. You asked: " + strings.TrimSpace(last), nil
}
