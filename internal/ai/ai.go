// Package ai holds the boundaries to the response generator and the knowledge
// base. Both are collaborators; the hand-off core only depends on the interfaces.
package ai

import (
	"context"
	"time"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// Response is a generated assistant reply.
type Response struct {
	Content      string        `json:"content"`
	Confidence   float64       `json:"confidence"`
	TokensUsed   int           `json:"tokensUsed"`
	ResponseTime time.Duration `json:"-"`
}

// Responder generates a reply from the conversation so far.
type Responder interface {
	GenerateResponse(ctx context.Context, history []domain.Message, customerContext map[string]string, knowledge []string) (Response, error)
}

// KnowledgeBase returns text snippets relevant to a query.
type KnowledgeBase interface {
	GetRelevantContext(ctx context.Context, query string, recent []domain.Message) ([]string, error)
}
