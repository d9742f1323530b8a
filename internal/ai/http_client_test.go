package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

func TestHTTPResponderDecodesReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"hello","confidence":0.9,"tokensUsed":12}`))
	}))
	defer srv.Close()

	r := NewHTTPResponder(srv.URL, time.Second)
	resp, err := r.GenerateResponse(context.Background(),
		[]domain.Message{{Role: domain.RoleCustomer, Content: "hi"}}, nil, []string{"kb"})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.InDelta(t, 0.9, resp.Confidence, 1e-9)
	require.Equal(t, 12, resp.TokensUsed)
	require.Equal(t, []any{"kb"}, got["knowledgeSnippets"])
}

func TestHTTPResponderReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPResponder(srv.URL, time.Second).GenerateResponse(context.Background(), nil, nil, nil)
	require.Error(t, err)
}

func TestHTTPKnowledgeBaseHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"snippets":["late"]}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPKnowledgeBase(srv.URL, time.Minute).GetRelevantContext(ctx, "q", nil)
	require.Error(t, err)
}

func TestScriptedResponderPrefersKnowledge(t *testing.T) {
	resp, err := ScriptedResponder{Reply: "default"}.GenerateResponse(context.Background(), nil, nil, []string{"from kb"})
	require.NoError(t, err)
	require.Equal(t, "from kb", resp.Content)
}
