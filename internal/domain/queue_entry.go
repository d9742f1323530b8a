package domain

import "time"

// Priority orders queued sessions.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the ordering weight; unknown priorities rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ParsePriority maps free-form input to a Priority, defaulting to medium.
func ParsePriority(raw string) Priority {
	p := Priority(raw)
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// QueueEntry is a session waiting for a human.
type QueueEntry struct {
	SessionID       string            `json:"sessionId"`
	Priority        Priority          `json:"priority"`
	EnqueuedAt      time.Time         `json:"enqueuedAt"`
	CustomerContext map[string]string `json:"customerContext,omitempty"`
	LastMessage     string            `json:"lastMessage,omitempty"`
}

// Before reports whether e is served before other: higher priority first, then FIFO.
func (e QueueEntry) Before(other QueueEntry) bool {
	if e.Priority.Rank() != other.Priority.Rank() {
		return e.Priority.Rank() > other.Priority.Rank()
	}
	if !e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.EnqueuedAt.Before(other.EnqueuedAt)
	}
	return e.SessionID < other.SessionID
}

// QueuedSession is a read-only view of a QueueEntry with derived wait time.
type QueuedSession struct {
	QueueEntry
	Position int           `json:"position"`
	Wait     time.Duration `json:"-"`
	WaitSecs float64       `json:"waitSeconds"`
}

// QueueStats summarizes the queue for broadcast.
type QueueStats struct {
	Length            int              `json:"length"`
	AverageWaitTime   float64          `json:"averageWaitTime"`
	LongestWaitTime   float64          `json:"longestWaitTime"`
	PriorityBreakdown map[Priority]int `json:"priorityBreakdown"`
}
