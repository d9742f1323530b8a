package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/ai"
	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/events"
	"github.com/handoffdesk/chat-handoff/internal/observability"
	"github.com/handoffdesk/chat-handoff/internal/service"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
	"github.com/handoffdesk/chat-handoff/pkg/util/keylock"
)

// Escalation triggers recorded on session_escalated events.
const (
	TriggerCustomer      = "customer"
	TriggerKeyword       = "keyword"
	TriggerLowConfidence = "low_confidence"
	TriggerAIFailure     = "ai_failure"
)

// TokenVerifier resolves a staff token to the staff member.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*domain.StaffMember, error)
}

// Dependencies groups the collaborators of the Coordinator.
type Dependencies struct {
	Sessions   *service.SessionStore
	Staff      *service.StaffDirectory
	Queue      *service.Queue
	Ledger     *service.AssignmentLedger
	Assigner   *service.AutoAssigner
	Auth       TokenVerifier
	Responder  ai.Responder
	Knowledge  ai.KnowledgeBase
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Coordinator routes realtime commands across the queue, the staff directory
// and the assignment ledger, and fans the results out to live connections.
//
// Customer-originated work on a session (messages, escalation, leave) runs under
// that session's affinity lock so it is processed in send order. No lock is
// held across the AI call.
type Coordinator struct {
	hub        *Hub
	sessions   *service.SessionStore
	staff      *service.StaffDirectory
	queue      *service.Queue
	ledger     *service.AssignmentLedger
	assigner   *service.AutoAssigner
	auth       TokenVerifier
	responder  ai.Responder
	knowledge  ai.KnowledgeBase
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	handoff          config.HandoffConfig
	keywords         []string
	aiTimeout        time.Duration
	knowledgeTimeout time.Duration
	affinity         *keylock.KeyLock
	now              func() time.Time
}

// NewCoordinator wires the coordinator.
func NewCoordinator(hub *Hub, cfg config.Config, deps Dependencies) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	knowledge := deps.Knowledge
	if knowledge == nil {
		knowledge = ai.NoKnowledge{}
	}
	keywords := make([]string, 0, len(cfg.Handoff.EscalationKeywords))
	for _, kw := range cfg.Handoff.EscalationKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Coordinator{
		hub:              hub,
		sessions:         deps.Sessions,
		staff:            deps.Staff,
		queue:            deps.Queue,
		ledger:           deps.Ledger,
		assigner:         deps.Assigner,
		auth:             deps.Auth,
		responder:        deps.Responder,
		knowledge:        knowledge,
		dispatcher:       deps.Dispatcher,
		metrics:          deps.Metrics,
		logger:           logger,
		handoff:          cfg.Handoff,
		keywords:         keywords,
		aiTimeout:        cfg.AI.Timeout(),
		knowledgeTimeout: cfg.AI.KnowledgeTimeout(),
		affinity:         keylock.New(),
		now:              time.Now,
	}
}

// Hub returns the connection registry.
func (c *Coordinator) Hub() *Hub {
	return c.hub
}

// Connect registers a new unauthenticated connection.
func (c *Coordinator) Connect(conn Conn) {
	c.hub.Register(conn)
	c.metrics.AddConnection(Unauthenticated{}.roleName(), 1)
}

// Disconnect drops a connection. Staff go offline once their last connection
// closes; a customer's assignment is left alone so they can reconnect.
func (c *Coordinator) Disconnect(ctx context.Context, conn Conn) {
	role := c.hub.Unregister(conn.ID())
	c.metrics.AddConnection(role.roleName(), -1)

	switch r := role.(type) {
	case Staff:
		c.logger.Info("staff disconnected", zap.String("staff_id", r.StaffID), zap.String("conn_id", conn.ID()))
		if c.hub.StaffOnline(r.StaffID) {
			return
		}
		if err := c.SetStaffStatus(ctx, r.StaffID, domain.StaffStatusOffline); err != nil {
			c.logger.Warn("failed to mark staff offline", zap.String("staff_id", r.StaffID), zap.Error(err))
		}
	case Customer:
		c.logger.Info("customer disconnected", zap.String("session_id", r.SessionID), zap.String("conn_id", conn.ID()))
	}
}

// Handle dispatches one inbound command according to the connection's role.
// Failures are reported back on the connection and also returned.
func (c *Coordinator) Handle(ctx context.Context, conn Conn, cmd Command) error {
	role := c.hub.Role(conn.ID())

	var err error
	switch r := role.(type) {
	case Staff:
		err = c.handleStaff(ctx, conn, r, cmd)
	case Customer:
		err = c.handleCustomer(ctx, conn, r, cmd)
	default:
		err = c.handleUnauthenticated(ctx, conn, cmd)
	}
	if err != nil {
		c.reportError(conn, role, cmd, err)
	}
	return err
}

func (c *Coordinator) handleUnauthenticated(ctx context.Context, conn Conn, cmd Command) error {
	switch cmd := cmd.(type) {
	case StaffAuthenticate:
		return c.authenticateStaff(ctx, conn, cmd.Token)
	case CustomerJoin:
		return c.joinCustomer(ctx, conn, cmd.SessionID)
	default:
		return apperrors.NewUnauthorized("authenticate or join a session first")
	}
}

func (c *Coordinator) handleStaff(ctx context.Context, conn Conn, role Staff, cmd Command) error {
	switch cmd := cmd.(type) {
	case SendMessage:
		return c.staffMessage(ctx, role.StaffID, cmd)
	case Typing:
		return c.staffTyping(ctx, role.StaffID, cmd)
	case StaffStatusUpdate:
		return c.SetStaffStatus(ctx, role.StaffID, cmd.Status)
	case AssignChat:
		actor, err := c.staff.Get(ctx, role.StaffID)
		if err != nil {
			return err
		}
		_, err = c.Assign(ctx, actor, cmd.SessionID, cmd.StaffID)
		return err
	case TransferChat:
		actor, err := c.staff.Get(ctx, role.StaffID)
		if err != nil {
			return err
		}
		_, err = c.Transfer(ctx, actor, cmd.SessionID, cmd.ToStaffID)
		return err
	case CompleteChat:
		actor, err := c.staff.Get(ctx, role.StaffID)
		if err != nil {
			return err
		}
		_, err = c.Complete(ctx, actor, cmd.SessionID)
		return err
	case StaffAuthenticate, CustomerJoin:
		return apperrors.NewConflict("connection already authenticated", nil)
	default:
		return apperrors.NewForbidden(cmd.commandName() + " is not available to staff")
	}
}

func (c *Coordinator) handleCustomer(ctx context.Context, conn Conn, role Customer, cmd Command) error {
	switch cmd := cmd.(type) {
	case SendMessage:
		if err := ownSession(role, cmd.SessionID); err != nil {
			return err
		}
		if cmd.Role != "" && cmd.Role != domain.RoleCustomer {
			return apperrors.NewForbidden("customers can only send customer messages")
		}
		return c.customerMessage(ctx, role.SessionID, cmd.Message)
	case Typing:
		if err := ownSession(role, cmd.SessionID); err != nil {
			return err
		}
		return c.customerTyping(ctx, role.SessionID, cmd.IsTyping)
	case RequestStaff:
		if err := ownSession(role, cmd.SessionID); err != nil {
			return err
		}
		return c.RequestStaff(ctx, role.SessionID, cmd.Priority)
	case CustomerLeave:
		if err := ownSession(role, cmd.SessionID); err != nil {
			return err
		}
		return c.CustomerLeave(ctx, role.SessionID)
	case StaffAuthenticate, CustomerJoin:
		return apperrors.NewConflict("connection already joined a session", nil)
	default:
		return apperrors.NewForbidden(cmd.commandName() + " is not available to customers")
	}
}

func ownSession(role Customer, sessionID string) error {
	if sessionID != "" && sessionID != role.SessionID {
		return apperrors.NewForbidden("connection is bound to another session")
	}
	return nil
}

func (c *Coordinator) authenticateStaff(ctx context.Context, conn Conn, token string) error {
	if token == "" {
		return apperrors.NewUnauthorized("token required")
	}
	member, err := c.auth.VerifyToken(ctx, token)
	if err != nil {
		return err
	}
	if err := c.hub.Bind(conn, Staff{StaffID: member.ID}); err != nil {
		return err
	}
	c.metrics.AddConnection(Unauthenticated{}.roleName(), -1)
	c.metrics.AddConnection(Staff{}.roleName(), 1)

	assignments, err := c.ledger.ListByStaff(ctx, member.ID)
	if err != nil {
		c.logger.Warn("failed to load staff assignments", zap.String("staff_id", member.ID), zap.Error(err))
		assignments = []domain.Assignment{}
	}
	conn.Send(Frame{Event: EventAuthenticated, Data: AuthenticatedPayload{
		Staff:       member.Public(),
		Assignments: assignments,
	}})
	c.logger.Info("staff authenticated", zap.String("staff_id", member.ID), zap.String("conn_id", conn.ID()))

	return c.SetStaffStatus(ctx, member.ID, domain.StaffStatusOnline)
}

func (c *Coordinator) joinCustomer(ctx context.Context, conn Conn, sessionID string) error {
	if sessionID == "" {
		return apperrors.NewValidationError("sessionId required", nil)
	}
	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.hub.Bind(conn, Customer{SessionID: sessionID}); err != nil {
		return err
	}
	c.metrics.AddConnection(Unauthenticated{}.roleName(), -1)
	c.metrics.AddConnection(Customer{}.roleName(), 1)

	history, err := c.sessions.History(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	conn.Send(Frame{Event: EventJoined, Data: JoinedPayload{
		SessionID: sessionID,
		Status:    session.Status,
		Messages:  history,
	}})
	c.logger.Info("customer joined", zap.String("session_id", sessionID), zap.String("conn_id", conn.ID()))
	return nil
}

// customerMessage stores a customer message and decides who answers it. Only
// sessions in the active status reach the AI; a live assignment always wins.
func (c *Coordinator) customerMessage(ctx context.Context, sessionID, content string) error {
	session, toAI, err := c.recordCustomerMessage(ctx, sessionID, content)
	if err != nil || !toAI {
		return err
	}
	return c.answerWithAI(ctx, session, content)
}

// recordCustomerMessage runs under the session's affinity lock and reports
// whether the AI should answer.
func (c *Coordinator) recordCustomerMessage(ctx context.Context, sessionID, content string) (*domain.Session, bool, error) {
	unlock := c.affinity.Lock(sessionID)
	defer unlock()

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if session.Status == domain.SessionResolved {
		return nil, false, apperrors.NewValidationError("session is resolved", map[string]any{"session_id": sessionID})
	}

	msg, err := c.sessions.AddMessage(ctx, sessionID, content, domain.RoleCustomer, nil)
	if err != nil {
		return nil, false, err
	}
	c.publishMessage(ctx, sessionID, msg)

	if session.Status != domain.SessionActive {
		return session, false, nil
	}
	if _, live, err := c.ledger.Live(ctx, sessionID); err != nil {
		return nil, false, err
	} else if live {
		return session, false, nil
	}
	if c.matchesEscalationKeyword(content) {
		return session, false, c.escalateLocked(ctx, session, domain.PriorityMedium, TriggerKeyword)
	}
	return session, true, nil
}

func (c *Coordinator) matchesEscalationKeyword(content string) bool {
	lowered := strings.ToLower(content)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// answerWithAI calls the AI with no lock held. The affinity lock is taken again
// to store the outcome; a reply that arrives after a human took the session is
// stored but not delivered, and a failure is not announced to a session that
// is no longer AI-handled.
func (c *Coordinator) answerWithAI(ctx context.Context, session *domain.Session, query string) error {
	callCtx := context.WithoutCancel(ctx)
	sessionID := session.ID

	history, err := c.sessions.History(callCtx, sessionID, c.handoff.HistoryWindow)
	if err != nil {
		return err
	}
	snippets := c.lookupKnowledge(callCtx, query, history)

	aiCtx, cancel := context.WithTimeout(callCtx, c.aiTimeout)
	resp, aiErr := c.responder.GenerateResponse(aiCtx, history, session.CustomerContext, snippets)
	timedOut := errors.Is(aiCtx.Err(), context.DeadlineExceeded)
	cancel()

	unlock := c.affinity.Lock(sessionID)
	defer unlock()

	current, err := c.sessions.Get(callCtx, sessionID)
	if err != nil {
		return err
	}
	_, live, err := c.ledger.Live(callCtx, sessionID)
	if err != nil {
		return err
	}
	handled := current.Status == domain.SessionActive && !live

	if aiErr != nil {
		outcome := "error"
		if timedOut {
			outcome = "timeout"
		}
		c.metrics.RecordAIRequest(outcome)
		c.logger.Warn("ai response failed",
			zap.String("session_id", sessionID),
			zap.String("outcome", outcome),
			zap.Error(aiErr))
		if !handled {
			return nil
		}
		return c.apologize(callCtx, current)
	}
	c.metrics.RecordAIRequest("success")

	msg, err := c.sessions.AddMessage(callCtx, sessionID, resp.Content, domain.RoleAssistant, map[string]any{
		"confidence":     resp.Confidence,
		"tokensUsed":     resp.TokensUsed,
		"responseTimeMs": resp.ResponseTime.Milliseconds(),
	})
	if err != nil {
		return err
	}
	if !handled {
		c.logger.Info("ai reply stored without delivery",
			zap.String("session_id", sessionID),
			zap.String("status", string(current.Status)))
		return nil
	}
	c.publishMessage(callCtx, sessionID, msg)

	if c.handoff.MinAIConfidence > 0 && resp.Confidence < c.handoff.MinAIConfidence {
		return c.escalateLocked(callCtx, current, domain.PriorityMedium, TriggerLowConfidence)
	}
	return nil
}

func (c *Coordinator) lookupKnowledge(ctx context.Context, query string, history []domain.Message) []string {
	kbCtx, cancel := context.WithTimeout(ctx, c.knowledgeTimeout)
	defer cancel()
	snippets, err := c.knowledge.GetRelevantContext(kbCtx, query, history)
	if err != nil {
		c.logger.Warn("knowledge lookup failed", zap.Error(err))
		return nil
	}
	return snippets
}

func (c *Coordinator) apologize(ctx context.Context, session *domain.Session) error {
	if msg := c.systemMessage(ctx, session.ID, c.handoff.ApologyMessage); msg != nil {
		c.publishMessage(ctx, session.ID, msg)
	}
	if !c.handoff.EscalateOnAITimeout {
		return nil
	}
	return c.escalateLocked(ctx, session, domain.PriorityMedium, TriggerAIFailure)
}

// RequestStaff escalates a session to the human queue.
func (c *Coordinator) RequestStaff(ctx context.Context, sessionID string, priority domain.Priority) error {
	unlock := c.affinity.Lock(sessionID)
	defer unlock()

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	return c.escalateLocked(ctx, session, domain.ParsePriority(string(priority)), TriggerCustomer)
}

// escalateLocked must run under the session's affinity lock. The status moves to
// waiting_for_staff before the entry becomes visible to the assigner, so a
// concurrent assignment can never be overwritten by it.
func (c *Coordinator) escalateLocked(ctx context.Context, session *domain.Session, priority domain.Priority, trigger string) error {
	switch session.Status {
	case domain.SessionWithStaff:
		return nil
	case domain.SessionResolved:
		return apperrors.NewValidationError("session is resolved", map[string]any{"session_id": session.ID})
	}

	var lastMessage string
	if recent, err := c.sessions.History(ctx, session.ID, 1); err == nil && len(recent) > 0 {
		lastMessage = recent[0].Content
	}

	previous := session.Status
	if _, err := c.sessions.UpdateStatus(ctx, session.ID, domain.SessionWaitingForStaff, ""); err != nil {
		return err
	}
	entry, err := c.queue.Enqueue(ctx, domain.QueueEntry{
		SessionID:       session.ID,
		Priority:        priority,
		CustomerContext: session.CustomerContext,
		LastMessage:     lastMessage,
	})
	switch {
	case err == nil:
		c.logger.Info("session escalated",
			zap.String("session_id", session.ID),
			zap.String("priority", string(entry.Priority)),
			zap.String("trigger", trigger))
		if msg := c.systemMessage(ctx, session.ID, c.handoff.QueuedMessage); msg != nil {
			c.publishMessage(ctx, session.ID, msg)
		}
		c.publish(ctx, events.Event{
			Type:      events.EventSessionEscalated,
			SessionID: session.ID,
			Payload:   events.SessionEscalatedPayload{Priority: entry.Priority, Trigger: trigger},
		})
	case apperrors.IsCode(err, apperrors.CodeAlreadyQueued):
	default:
		if _, rbErr := c.sessions.UpdateStatus(ctx, session.ID, previous, ""); rbErr != nil {
			c.logger.Error("failed to restore session status", zap.String("session_id", session.ID), zap.Error(rbErr))
		}
		return err
	}

	c.dispatchQueue(ctx)
	c.broadcastQueueStats(ctx)
	return nil
}

// CustomerLeave removes a waiting session from the queue and resolves it. A
// session already with staff is left for the staff member to complete.
func (c *Coordinator) CustomerLeave(ctx context.Context, sessionID string) error {
	unlock := c.affinity.Lock(sessionID)
	defer unlock()

	removed, err := c.queue.Remove(ctx, sessionID)
	if err != nil {
		return err
	}
	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if removed || session.Status == domain.SessionWaitingForStaff || session.Status == domain.SessionActive {
		if _, err := c.sessions.UpdateStatus(ctx, sessionID, domain.SessionResolved, ""); err != nil {
			return err
		}
	}
	c.logger.Info("customer left", zap.String("session_id", sessionID), zap.Bool("was_queued", removed))
	if removed {
		c.broadcastQueueStats(ctx)
	}
	return nil
}

// Assign hands a session to staffID, or to the actor when staffID is empty.
// Agents may only take sessions for themselves.
func (c *Coordinator) Assign(ctx context.Context, actor *domain.StaffMember, sessionID, staffID string) (domain.Assignment, error) {
	if sessionID == "" {
		return domain.Assignment{}, apperrors.NewValidationError("sessionId required", nil)
	}
	target := staffID
	if target == "" {
		target = actor.ID
	}
	if target != actor.ID && !canManage(actor) {
		return domain.Assignment{}, apperrors.NewForbidden("only supervisors can assign chats to others")
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if session.Status == domain.SessionResolved {
		return domain.Assignment{}, apperrors.NewValidationError("session is resolved", map[string]any{"session_id": sessionID})
	}

	assignment, created, err := c.ledger.Create(ctx, sessionID, target)
	if err != nil {
		c.metrics.RecordAssignment("rejected")
		return domain.Assignment{}, err
	}
	if created {
		c.onAssigned(ctx, assignment, false, nil)
		c.broadcastQueueStats(ctx)
	}
	return assignment, nil
}

// Transfer moves a live assignment to toStaffID. Owners and supervisors may
// transfer; transferring a completed chat is a no-op.
func (c *Coordinator) Transfer(ctx context.Context, actor *domain.StaffMember, sessionID, toStaffID string) (domain.Assignment, error) {
	if sessionID == "" || toStaffID == "" {
		return domain.Assignment{}, apperrors.NewValidationError("sessionId and toStaffId required", nil)
	}
	current, err := c.ledger.Get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if current.StaffID != actor.ID && !canManage(actor) {
		return domain.Assignment{}, apperrors.NewForbidden("only the owner or a supervisor can transfer this chat")
	}
	if current.Status.Terminal() {
		return current, nil
	}

	assignment, moved, err := c.ledger.Transfer(ctx, sessionID, current.StaffID, toStaffID)
	if err != nil {
		c.metrics.RecordTransfer("failed")
		return domain.Assignment{}, err
	}
	if !moved {
		return assignment, nil
	}

	session, err := c.sessions.UpdateStatus(ctx, sessionID, domain.SessionWithStaff, toStaffID)
	if err != nil {
		c.logger.Error("failed to update transferred session", zap.String("session_id", sessionID), zap.Error(err))
	}

	frame := Frame{Event: EventChatTransferred, Data: ChatTransferredPayload{
		SessionID:   sessionID,
		FromStaffID: current.StaffID,
		ToStaffID:   toStaffID,
		StaffName:   c.staffName(ctx, toStaffID),
		Assignment:  assignment,
	}}
	c.hub.SendToStaff(current.StaffID, frame)
	c.hub.SendToStaff(toStaffID, frame)
	c.hub.SendToSession(sessionID, frame)
	if session != nil {
		c.hub.SendToStaff(toStaffID, c.assignedFrame(ctx, assignment, *session, false, nil))
	}

	c.publish(ctx, events.Event{
		Type:      events.EventChatTransferred,
		SessionID: sessionID,
		StaffID:   toStaffID,
		Payload:   events.ChatTransferredPayload{FromStaffID: current.StaffID, ToStaffID: toStaffID},
	})

	c.dispatchQueue(ctx)
	c.broadcastQueueStats(ctx)
	return assignment, nil
}

// Complete resolves a chat. Completing twice is a no-op.
func (c *Coordinator) Complete(ctx context.Context, actor *domain.StaffMember, sessionID string) (domain.Assignment, error) {
	if sessionID == "" {
		return domain.Assignment{}, apperrors.NewValidationError("sessionId required", nil)
	}
	existing, err := c.ledger.Get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if existing.StaffID != actor.ID && !canManage(actor) {
		return domain.Assignment{}, apperrors.NewForbidden("only the owner or a supervisor can complete this chat")
	}

	assignment, completed, err := c.ledger.Complete(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !completed {
		return assignment, nil
	}

	if _, err := c.sessions.UpdateStatus(ctx, sessionID, domain.SessionResolved, ""); err != nil {
		c.logger.Error("failed to resolve session", zap.String("session_id", sessionID), zap.Error(err))
	}

	frame := Frame{Event: EventChatCompleted, Data: ChatCompletedPayload{
		SessionID:   sessionID,
		StaffID:     assignment.StaffID,
		CompletedAt: assignment.CompletedAt,
	}}
	c.hub.SendToStaff(assignment.StaffID, frame)
	c.hub.SendToSession(sessionID, frame)

	c.publish(ctx, events.Event{
		Type:      events.EventChatCompleted,
		SessionID: sessionID,
		StaffID:   assignment.StaffID,
		Payload:   events.ChatCompletedPayload{Assignment: assignment},
	})

	c.dispatchQueue(ctx)
	c.broadcastQueueStats(ctx)
	return assignment, nil
}

// SetStaffStatus changes presence, tells the other staff and, when the staff
// member comes online, routes waiting sessions.
func (c *Coordinator) SetStaffStatus(ctx context.Context, staffID string, status domain.StaffStatus) error {
	old, err := c.staff.SetStatus(ctx, staffID, status)
	if err != nil {
		return err
	}
	if old != status {
		c.hub.BroadcastStaff(Frame{Event: EventStaffStatusChanged, Data: StaffStatusChangedPayload{
			StaffID: staffID,
			Status:  status,
		}}, "")
		c.publish(ctx, events.Event{
			Type:    events.EventStaffStatusChanged,
			StaffID: staffID,
			Payload: events.StaffStatusChangedPayload{OldStatus: old, NewStatus: status},
		})
	}
	if status == domain.StaffStatusOnline {
		c.dispatchQueue(ctx)
	}
	c.refreshAvailability(ctx)
	c.broadcastQueueStats(ctx)
	return nil
}

// BroadcastQueueStats sends queue_updated to every staff connection.
func (c *Coordinator) BroadcastQueueStats(ctx context.Context) error {
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return err
	}
	c.hub.BroadcastStaff(Frame{Event: EventQueueUpdated, Data: stats}, "")
	c.publish(ctx, events.Event{
		Type:    events.EventQueueUpdated,
		Payload: events.QueueUpdatedPayload{Stats: stats},
	})
	return nil
}

func (c *Coordinator) broadcastQueueStats(ctx context.Context) {
	if err := c.BroadcastQueueStats(ctx); err != nil {
		c.logger.Warn("queue stats broadcast failed", zap.Error(err))
	}
}

// dispatchQueue drains the queue into available staff. Routing failures only
// leave sessions queued; they are never reported to the caller.
func (c *Coordinator) dispatchQueue(ctx context.Context) {
	matches, err := c.assigner.Drain(ctx)
	if err != nil {
		c.logger.Warn("auto-assignment failed", zap.Error(err))
	}
	for i := range matches {
		c.onAssigned(ctx, matches[i].Assignment, true, &matches[i].Entry)
	}
}

func (c *Coordinator) onAssigned(ctx context.Context, assignment domain.Assignment, automatic bool, entry *domain.QueueEntry) {
	session, err := c.sessions.UpdateStatus(ctx, assignment.SessionID, domain.SessionWithStaff, assignment.StaffID)
	if err != nil {
		c.logger.Error("failed to mark session with staff",
			zap.String("session_id", assignment.SessionID),
			zap.String("staff_id", assignment.StaffID),
			zap.Error(err))
		return
	}

	notice := c.systemMessage(ctx, assignment.SessionID, c.handoff.StaffJoinedMessage)

	c.hub.SendToStaff(assignment.StaffID, c.assignedFrame(ctx, assignment, *session, automatic, entry))
	c.hub.SendToSession(assignment.SessionID, Frame{Event: EventStaffJoined, Data: StaffJoinedPayload{
		SessionID: assignment.SessionID,
		StaffID:   assignment.StaffID,
		StaffName: c.staffName(ctx, assignment.StaffID),
		Message:   c.handoff.StaffJoinedMessage,
	}})
	if notice != nil {
		c.hub.SendToSession(assignment.SessionID, Frame{Event: EventNewMessage, Data: NewMessagePayload{
			SessionID: assignment.SessionID,
			Message:   *notice,
		}})
	}

	c.publish(ctx, events.Event{
		Type:      events.EventChatAssigned,
		SessionID: assignment.SessionID,
		StaffID:   assignment.StaffID,
		Payload:   events.ChatAssignedPayload{Assignment: assignment, Automatic: automatic},
	})
}

func (c *Coordinator) assignedFrame(ctx context.Context, assignment domain.Assignment, session domain.Session, automatic bool, entry *domain.QueueEntry) Frame {
	history, err := c.sessions.History(ctx, assignment.SessionID, 0)
	if err != nil {
		c.logger.Warn("failed to load history for assignment", zap.String("session_id", assignment.SessionID), zap.Error(err))
		history = []domain.Message{}
	}
	return Frame{Event: EventChatAssigned, Data: ChatAssignedPayload{
		SessionID:  assignment.SessionID,
		Assignment: assignment,
		Session:    session,
		Messages:   history,
		Automatic:  automatic,
		QueueEntry: entry,
	}}
}

func (c *Coordinator) staffMessage(ctx context.Context, staffID string, cmd SendMessage) error {
	if cmd.Role != "" && cmd.Role != domain.RoleStaff {
		return apperrors.NewForbidden("staff can only send staff messages")
	}
	if cmd.SessionID == "" {
		return apperrors.NewValidationError("sessionId required", nil)
	}

	unlock := c.affinity.Lock(cmd.SessionID)
	defer unlock()

	assignment, live, err := c.ledger.Live(ctx, cmd.SessionID)
	if err != nil {
		return err
	}
	if !live || assignment.StaffID != staffID {
		return apperrors.NewForbidden("session is not assigned to you")
	}

	msg, err := c.sessions.AddMessage(ctx, cmd.SessionID, cmd.Message, domain.RoleStaff, map[string]any{"staffId": staffID})
	if err != nil {
		return err
	}
	if activated, err := c.ledger.Activate(ctx, cmd.SessionID, staffID); err != nil {
		c.logger.Warn("failed to activate assignment", zap.String("session_id", cmd.SessionID), zap.Error(err))
	} else if activated {
		c.logger.Info("assignment active", zap.String("session_id", cmd.SessionID), zap.String("staff_id", staffID))
	}
	c.publishMessage(ctx, cmd.SessionID, msg)
	return nil
}

func (c *Coordinator) staffTyping(ctx context.Context, staffID string, cmd Typing) error {
	assignment, live, err := c.ledger.Live(ctx, cmd.SessionID)
	if err != nil {
		return err
	}
	if !live || assignment.StaffID != staffID {
		return apperrors.NewForbidden("session is not assigned to you")
	}
	c.hub.SendToSession(cmd.SessionID, Frame{Event: EventUserTyping, Data: UserTypingPayload{
		SessionID: cmd.SessionID,
		Role:      domain.RoleStaff,
		UserID:    staffID,
		IsTyping:  cmd.IsTyping,
	}})
	return nil
}

func (c *Coordinator) customerTyping(ctx context.Context, sessionID string, typing bool) error {
	assignment, live, err := c.ledger.Live(ctx, sessionID)
	if err != nil || !live {
		return err
	}
	c.hub.SendToStaff(assignment.StaffID, Frame{Event: EventUserTyping, Data: UserTypingPayload{
		SessionID: sessionID,
		Role:      domain.RoleCustomer,
		IsTyping:  typing,
	}})
	return nil
}

// publishMessage sends new_message to the session's customers and its assigned staff.
func (c *Coordinator) publishMessage(ctx context.Context, sessionID string, msg *domain.Message) {
	frame := Frame{Event: EventNewMessage, Data: NewMessagePayload{SessionID: sessionID, Message: *msg}}
	c.hub.SendToSession(sessionID, frame)
	if assignment, live, err := c.ledger.Live(ctx, sessionID); err == nil && live {
		c.hub.SendToStaff(assignment.StaffID, frame)
	}
}

func (c *Coordinator) systemMessage(ctx context.Context, sessionID, text string) *domain.Message {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	msg, err := c.sessions.AddMessage(ctx, sessionID, text, domain.RoleSystem, nil)
	if err != nil {
		c.logger.Warn("failed to store system message", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	return msg
}

func (c *Coordinator) staffName(ctx context.Context, staffID string) string {
	member, err := c.staff.Get(ctx, staffID)
	if err != nil || member.Name == "" {
		return staffID
	}
	return member.Name
}

func (c *Coordinator) refreshAvailability(ctx context.Context) {
	if c.metrics == nil {
		return
	}
	available, err := c.staff.ListAvailable(ctx)
	if err != nil {
		return
	}
	c.metrics.SetAvailableStaff(len(available))
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = c.now().UTC()
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// reportError gives staff a structured error and customers a plain notice.
func (c *Coordinator) reportError(conn Conn, role Role, cmd Command, err error) {
	de := apperrors.ToDomainError(err)
	if de.Code == apperrors.CodeInternal {
		c.logger.Error("realtime command failed",
			zap.String("conn_id", conn.ID()),
			zap.String("event", cmd.commandName()),
			zap.Error(err))
	} else {
		c.logger.Debug("realtime command rejected",
			zap.String("conn_id", conn.ID()),
			zap.String("event", cmd.commandName()),
			zap.String("code", de.Code))
	}

	customer, ok := role.(Customer)
	if !ok {
		conn.Send(errorFrame(err))
		return
	}
	conn.Send(Frame{Event: EventNewMessage, Data: NewMessagePayload{
		SessionID: customer.SessionID,
		Message: domain.Message{
			SessionID: customer.SessionID,
			Role:      domain.RoleSystem,
			Content:   customerNotice(de.Code),
			CreatedAt: c.now(),
		},
	}})
}

func customerNotice(code string) string {
	switch code {
	case apperrors.CodeNotFound:
		return "We couldn't find this conversation. Please start a new chat."
	case apperrors.CodeValidation:
		return "Your message couldn't be sent. Please check it and try again."
	case apperrors.CodeForbidden, apperrors.CodeUnauthorized:
		return "That action isn't available in this conversation."
	default:
		return "Something went wrong on our side. Please try again."
	}
}

func canManage(actor *domain.StaffMember) bool {
	return actor.Role == domain.StaffRoleSupervisor || actor.Role == domain.StaffRoleAdmin
}
