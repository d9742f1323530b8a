package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

type wireMessage struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
}

func toWire(history []domain.Message) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, m := range history {
		out = append(out, wireMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// postJSON sends body to url and decodes the JSON reply into out. The request is
// bounded by timeout or the context deadline, whichever is sooner.
func postJSON(ctx context.Context, url string, timeout time.Duration, body, out any) error {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(url)
	agent.JSON(body)
	agent.Timeout(timeout)

	type result struct {
		code int
		raw  []byte
		errs []error
	}
	done := make(chan result, 1)
	go func() {
		code, raw, errs := agent.Bytes()
		done <- result{code: code, raw: raw, errs: errs}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if len(res.errs) > 0 {
			return errors.Join(res.errs...)
		}
		if res.code < 200 || res.code >= 300 {
			return fmt.Errorf("%s returned status %d", url, res.code)
		}
		if err := json.Unmarshal(res.raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", url, err)
		}
		return nil
	}
}

// HTTPResponder calls a JSON endpoint that wraps the language model.
type HTTPResponder struct {
	url     string
	timeout time.Duration
}

// NewHTTPResponder constructs the responder.
func NewHTTPResponder(url string, timeout time.Duration) *HTTPResponder {
	return &HTTPResponder{url: url, timeout: timeout}
}

// GenerateResponse implements Responder.
func (r *HTTPResponder) GenerateResponse(ctx context.Context, history []domain.Message, customerContext map[string]string, knowledge []string) (Response, error) {
	start := time.Now()
	req := struct {
		History         []wireMessage     `json:"history"`
		CustomerContext map[string]string `json:"customerContext,omitempty"`
		Knowledge       []string          `json:"knowledgeSnippets"`
	}{History: toWire(history), CustomerContext: customerContext, Knowledge: knowledge}

	var resp Response
	if err := postJSON(ctx, r.url, r.timeout, req, &resp); err != nil {
		return Response{}, err
	}
	if resp.Content == "" {
		return Response{}, errors.New("empty response content")
	}
	resp.ResponseTime = time.Since(start)
	return resp, nil
}

// HTTPKnowledgeBase calls a JSON vector-search endpoint.
type HTTPKnowledgeBase struct {
	url     string
	timeout time.Duration
}

// NewHTTPKnowledgeBase constructs the client.
func NewHTTPKnowledgeBase(url string, timeout time.Duration) *HTTPKnowledgeBase {
	return &HTTPKnowledgeBase{url: url, timeout: timeout}
}

// GetRelevantContext implements KnowledgeBase.
func (k *HTTPKnowledgeBase) GetRelevantContext(ctx context.Context, query string, recent []domain.Message) ([]string, error) {
	req := struct {
		Query   string        `json:"query"`
		History []wireMessage `json:"recentHistory"`
	}{Query: query, History: toWire(recent)}

	var resp struct {
		Snippets []string `json:"snippets"`
	}
	if err := postJSON(ctx, k.url, k.timeout, req, &resp); err != nil {
		return nil, err
	}
	return resp.Snippets, nil
}
