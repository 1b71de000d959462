package auth

// SnapshotReader exposes the current session snapshot.
type SnapshotReader interface {
	Snapshot() Snapshot
}

// Decision is the outcome of a full-screen access check.
type Decision int

const (
	// DecisionWait means the session is still resolving. Show nothing protected.
	DecisionWait Decision = iota
	// DecisionRedirect means nobody is signed in. Send the caller to sign in.
	DecisionRedirect
	// DecisionForbidden means the identity is signed in but ranks too low.
	DecisionForbidden
	// DecisionAllow grants access.
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRedirect:
		return "redirect"
	case DecisionForbidden:
		return "forbidden"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// AccessGate is the authorization checkpoint. It reads the session on every
// call and never caches a result.
type AccessGate struct {
	session SnapshotReader
}

func NewAccessGate(session SnapshotReader) *AccessGate {
	return &AccessGate{session: session}
}

// CanAccess reports whether the current identity ranks at least required.
func (g *AccessGate) CanAccess(required Role) bool {
	return g.RequireAccess(required) == DecisionAllow
}

// RequireAccess decides how a protected screen or action should respond.
func (g *AccessGate) RequireAccess(required Role) Decision {
	snap := g.session.Snapshot()
	switch snap.State() {
	case StateAuthenticated:
		id, _ := snap.Identity()
		if MeetsMinimum(id.Role, required) {
			return DecisionAllow
		}
		return DecisionForbidden
	case StateUnauthenticated:
		return DecisionRedirect
	default:
		return DecisionWait
	}
}
