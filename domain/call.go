package domain

import "time"

type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallConnected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "RINGING"
	case CallConnected:
		return "CONNECTED"
	case CallEnded:
		return "ENDED"
	default:
		return "IDLE"
	}
}

// CallKey identifies a call attempt by its ordered (caller, callee) pair.
type CallKey struct {
	Caller string
	Callee string
}

// CallSession is ephemeral, it lives only in memory for one call attempt.
type CallSession struct {
	Key       CallKey
	State     CallState
	StartedAt time.Time
}

// Involves reports whether userID is one of the two parties.
func (s CallSession) Involves(userID string) bool {
	return s.Key.Caller == userID || s.Key.Callee == userID
}

// Peer returns the other party of the call.
func (s CallSession) Peer(userID string) string {
	if s.Key.Caller == userID {
		return s.Key.Callee
	}
	return s.Key.Caller
}
