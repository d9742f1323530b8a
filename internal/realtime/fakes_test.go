package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/ai"
	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/events"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	"github.com/handoffdesk/chat-handoff/internal/service"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []Frame
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.Event)
	}
	return out
}

func (f *fakeConn) last(event string) (Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Event == event {
			return f.frames[i], true
		}
	}
	return Frame{}, false
}

func (f *fakeConn) messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, fr := range f.frames {
		if p, ok := fr.Data.(NewMessagePayload); ok {
			out = append(out, p.Message)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type countingResponder struct {
	calls      atomic.Int32
	reply      string
	confidence float64
	err        error
	block      chan struct{}
}

func (r *countingResponder) GenerateResponse(ctx context.Context, _ []domain.Message, _ map[string]string, _ []string) (ai.Response, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ai.Response{}, ctx.Err()
		}
	}
	if r.err != nil {
		return ai.Response{}, r.err
	}
	return ai.Response{Content: r.reply, Confidence: r.confidence, TokensUsed: 7}, nil
}

type failingKnowledge struct{}

func (failingKnowledge) GetRelevantContext(context.Context, string, []domain.Message) ([]string, error) {
	return nil, errors.New("vector store unavailable")
}

type tokenTable struct {
	directory *service.StaffDirectory
	tokens    map[string]string
}

func (t tokenTable) VerifyToken(ctx context.Context, token string) (*domain.StaffMember, error) {
	id, ok := t.tokens[token]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return t.directory.Get(ctx, id)
}

type harness struct {
	coord      *Coordinator
	directory  *service.StaffDirectory
	queue      *service.Queue
	ledger     *service.AssignmentLedger
	sessions   *service.SessionStore
	responder  *countingResponder
	tokens     map[string]string
	dispatched *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Config{
		Handoff: config.HandoffConfig{
			EscalationKeywords: []string{"human"},
			HistoryWindow:      10,
			ApologyMessage:     "sorry, try again",
			StaffJoinedMessage: "an agent joined",
			QueuedMessage:      "you are queued",
		},
		AI: config.AIConfig{TimeoutSeconds: 1, KnowledgeTimeoutSeconds: 1},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	stores := repository.NewMemoryStores()
	directory := service.NewStaffDirectory(repository.NewStaffRepository(stores.Staff), nil)
	queue := service.NewQueue(stores.Queue, nil)
	ledger := service.NewAssignmentLedger(stores.Assignments, directory, queue, nil)
	sessions := service.NewSessionStore(stores.Sessions, stores.Transcripts, nil)
	responder := &countingResponder{reply: "ai answer", confidence: 0.9}
	tokens := map[string]string{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	log := &eventLog{}
	dispatcher.SubscribeAll(log.record)

	coord := NewCoordinator(NewHub(nil), cfg, Dependencies{
		Sessions:   sessions,
		Staff:      directory,
		Queue:      queue,
		Ledger:     ledger,
		Assigner:   service.NewAutoAssigner(queue, directory, ledger, nil),
		Auth:       tokenTable{directory: directory, tokens: tokens},
		Responder:  responder,
		Knowledge:  failingKnowledge{},
		Dispatcher: dispatcher,
	})
	return &harness{
		coord:      coord,
		directory:  directory,
		queue:      queue,
		ledger:     ledger,
		sessions:   sessions,
		responder:  responder,
		tokens:     tokens,
		dispatched: log,
	}
}

func (h *harness) addStaff(t *testing.T, id string, role domain.StaffRole, maxChats int) {
	t.Helper()
	require.NoError(t, h.directory.Register(context.Background(), &domain.StaffMember{
		ID:                 id,
		Name:               "Agent " + id,
		Email:              id + "@example.com",
		Role:               role,
		MaxConcurrentChats: maxChats,
	}))
	h.tokens["token-"+id] = id
}

func (h *harness) connectStaff(t *testing.T, id string) *fakeConn {
	t.Helper()
	conn := newFakeConn("conn-" + id)
	h.coord.Connect(conn)
	require.NoError(t, h.coord.Handle(context.Background(), conn, StaffAuthenticate{Token: "token-" + id}))
	return conn
}

func (h *harness) connectCustomer(t *testing.T) (*domain.Session, *fakeConn) {
	t.Helper()
	ctx := context.Background()
	session, err := h.sessions.CreateSession(ctx, map[string]string{"name": "Dana"})
	require.NoError(t, err)
	conn := newFakeConn("conn-" + session.ID)
	h.coord.Connect(conn)
	require.NoError(t, h.coord.Handle(ctx, conn, CustomerJoin{SessionID: session.ID}))
	return session, conn
}

func (h *harness) sessionStatus(t *testing.T, id string) domain.SessionStatus {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return s.Status
}

func (h *harness) load(t *testing.T, id string) int {
	t.Helper()
	s, err := h.directory.Get(context.Background(), id)
	require.NoError(t, err)
	return s.CurrentChatCount
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
