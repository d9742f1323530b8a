package realtime

import (
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	Send(frame Frame) bool
}

// Hub maps staff and session identities to their live connections.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]Conn
	roles     map[string]Role
	staff     map[string]map[string]Conn
	customers map[string]map[string]Conn
	logger    *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:     make(map[string]Conn),
		roles:     make(map[string]Role),
		staff:     make(map[string]map[string]Conn),
		customers: make(map[string]map[string]Conn),
		logger:    logger,
	}
}

// Register adds an unauthenticated connection.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
	h.roles[conn.ID()] = Unauthenticated{}
}

// Role returns the role of a connection; unknown connections are unauthenticated.
func (h *Hub) Role(connID string) Role {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if role, ok := h.roles[connID]; ok {
		return role
	}
	return Unauthenticated{}
}

// Bind moves a connection out of Unauthenticated.
func (h *Hub) Bind(conn Conn, role Role) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.roles[conn.ID()]; ok {
		if _, unauth := current.(Unauthenticated); !unauth {
			return apperrors.NewConflict("connection already has a role", map[string]any{"role": current.roleName()})
		}
	}
	h.conns[conn.ID()] = conn
	h.roles[conn.ID()] = role

	switch r := role.(type) {
	case Staff:
		addConn(h.staff, r.StaffID, conn)
	case Customer:
		addConn(h.customers, r.SessionID, conn)
	}
	return nil
}

// Unregister drops a connection and returns the role it had.
func (h *Hub) Unregister(connID string) Role {
	h.mu.Lock()
	defer h.mu.Unlock()

	role, ok := h.roles[connID]
	if !ok {
		return Unauthenticated{}
	}
	delete(h.roles, connID)
	delete(h.conns, connID)

	switch r := role.(type) {
	case Staff:
		removeConn(h.staff, r.StaffID, connID)
	case Customer:
		removeConn(h.customers, r.SessionID, connID)
	}
	return role
}

// StaffOnline reports whether a staff member has any live connection.
func (h *Hub) StaffOnline(staffID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.staff[staffID]) > 0
}

// SendToStaff delivers to every connection of one staff member.
func (h *Hub) SendToStaff(staffID string, frame Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sendAll(h.staff[staffID], frame)
}

// SendToSession delivers to every customer connection of one session.
func (h *Hub) SendToSession(sessionID string, frame Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sendAll(h.customers[sessionID], frame)
}

// BroadcastStaff delivers to all staff connections except those of skipStaffID.
func (h *Hub) BroadcastStaff(frame Frame, skipStaffID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for staffID, conns := range h.staff {
		if staffID == skipStaffID {
			continue
		}
		sent += h.sendAll(conns, frame)
	}
	return sent
}

// Counts returns the number of staff and customer connections.
func (h *Hub) Counts() (staff, customers int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.staff {
		staff += len(conns)
	}
	for _, conns := range h.customers {
		customers += len(conns)
	}
	return staff, customers
}

func (h *Hub) sendAll(conns map[string]Conn, frame Frame) int {
	sent := 0
	for _, conn := range conns {
		if conn.Send(frame) {
			sent++
		} else {
			h.logger.Debug("dropped frame", zap.String("conn_id", conn.ID()), zap.String("event", frame.Event))
		}
	}
	return sent
}

func addConn(index map[string]map[string]Conn, key string, conn Conn) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]Conn)
		index[key] = set
	}
	set[conn.ID()] = conn
}

func removeConn(index map[string]map[string]Conn, key, connID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(index, key)
	}
}
