package ai

import (
	"context"
	"time"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// ScriptedResponder answers with a fixed reply. It is used when no model
// endpoint is configured so the chat flow still works end to end.
type ScriptedResponder struct {
	Reply      string
	Confidence float64
}

// GenerateResponse implements Responder.
func (s ScriptedResponder) GenerateResponse(_ context.Context, _ []domain.Message, _ map[string]string, knowledge []string) (Response, error) {
	reply := s.Reply
	if reply == "" {
		reply = "Thanks for your message. Type \"human\" at any time to talk to a member of our team."
	}
	if len(knowledge) > 0 {
		reply = knowledge[0]
	}
	return Response{Content: reply, Confidence: s.Confidence, ResponseTime: time.Millisecond}, nil
}

// NoKnowledge is a KnowledgeBase that never finds anything.
type NoKnowledge struct{}

// GetRelevantContext implements KnowledgeBase.
func (NoKnowledge) GetRelevantContext(context.Context, string, []domain.Message) ([]string, error) {
	return nil, nil
}
