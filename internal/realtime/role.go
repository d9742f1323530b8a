package realtime

// Role is the state of a connection. A connection starts Unauthenticated and
// moves to Staff or Customer exactly once; it never changes role afterwards.
type Role interface {
	roleName() string
}

// Unauthenticated has not presented a token or joined a session.
type Unauthenticated struct{}

// Staff is a connection authenticated as a staff member.
type Staff struct {
	StaffID string
}

// Customer is a connection bound to one session.
type Customer struct {
	SessionID string
}

func (Unauthenticated) roleName() string { return "unauthenticated" }
func (Staff) roleName() string           { return "staff" }
func (Customer) roleName() string        { return "customer" }
