package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
)

type ICallRelay interface {
	CallUser(from, to, name string, signal json.RawMessage) error
	AnswerCall(from, to string, signal json.RawMessage) error
	Signal(from, to string, candidate json.RawMessage) error
	DeclineCall(from, to string) error
	EndCall(from, to string) error
	Disconnect(userID string)
}

// CallRelay forwards WebRTC signaling between two online users.
// Every hop is at most once: an offline peer or a missing session drops
// the payload without telling the sender.
type CallRelay struct {
	presence contract.IPresence
	metrics  *observability.Metrics
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[domain.CallKey]domain.CallSession
}

func NewCallRelay(presence contract.IPresence, metrics *observability.Metrics, log *slog.Logger) *CallRelay {
	return &CallRelay{
		presence: presence,
		metrics:  metrics,
		log:      log,
		sessions: make(map[domain.CallKey]domain.CallSession),
	}
}

func requireParties(from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: caller and callee are required", errors.ErrProtocolViolation)
	}
	if from == to {
		return fmt.Errorf("%w: cannot call yourself", errors.ErrProtocolViolation)
	}
	return nil
}

// CallUser rings the callee. A new attempt replaces any session between the two.
func (r *CallRelay) CallUser(from, to, name string, signal json.RawMessage) error {
	if err := requireParties(from, to); err != nil {
		return err
	}
	conn, ok := r.presence.Lookup(to)
	if !ok {
		r.drop(event.CallUser, from, to, "unreachable")
		return nil
	}

	r.mu.Lock()
	r.discardLocked(from, to)
	key := domain.CallKey{Caller: from, Callee: to}
	r.sessions[key] = domain.CallSession{Key: key, State: domain.CallRinging, StartedAt: time.Now().UTC()}
	r.mu.Unlock()

	r.deliver(conn, event.New(event.CallUser, event.IncomingCall{Signal: signal, From: from, Name: name}), from, to)
	return nil
}

// AnswerCall connects a ringing call where from is the callee and to the caller.
func (r *CallRelay) AnswerCall(from, to string, signal json.RawMessage) error {
	if err := requireParties(from, to); err != nil {
		return err
	}
	key := domain.CallKey{Caller: to, Callee: from}

	r.mu.Lock()
	session, ok := r.sessions[key]
	if !ok || session.State != domain.CallRinging {
		r.mu.Unlock()
		r.drop(event.CallAccepted, from, to, "stale")
		return nil
	}
	session.State = domain.CallConnected
	r.sessions[key] = session
	r.mu.Unlock()

	conn, ok := r.presence.Lookup(to)
	if !ok {
		r.drop(event.CallAccepted, from, to, "unreachable")
		return nil
	}
	r.deliver(conn, event.New(event.CallAccepted, event.Accepted{Signal: signal, From: from}), from, to)
	return nil
}

// Signal relays an ICE candidate while a session exists between the two parties.
func (r *CallRelay) Signal(from, to string, candidate json.RawMessage) error {
	if err := requireParties(from, to); err != nil {
		return err
	}
	r.mu.Lock()
	_, ok := r.sessionLocked(from, to)
	r.mu.Unlock()
	if !ok {
		r.drop(event.IceCandidate, from, to, "no_session")
		return nil
	}

	conn, ok := r.presence.Lookup(to)
	if !ok {
		r.drop(event.IceCandidate, from, to, "unreachable")
		return nil
	}
	r.deliver(conn, event.New(event.IceCandidate, event.Candidate{Candidate: candidate, From: from}), from, to)
	return nil
}

func (r *CallRelay) DeclineCall(from, to string) error {
	return r.hangUp(event.CallDeclined, from, to)
}

func (r *CallRelay) EndCall(from, to string) error {
	return r.hangUp(event.CallEnded, from, to)
}

// hangUp forwards even without a session so a peer stuck ringing can be released.
func (r *CallRelay) hangUp(name event.Name, from, to string) error {
	if err := requireParties(from, to); err != nil {
		return err
	}
	r.mu.Lock()
	r.discardLocked(from, to)
	r.mu.Unlock()

	conn, ok := r.presence.Lookup(to)
	if !ok {
		r.drop(name, from, to, "unreachable")
		return nil
	}
	r.deliver(conn, event.New(name, event.HangUp{From: from}), from, to)
	return nil
}

// Disconnect ends every call involving userID and tells the peers.
func (r *CallRelay) Disconnect(userID string) {
	r.mu.Lock()
	var peers []string
	for key, session := range r.sessions {
		if session.Involves(userID) {
			peers = append(peers, session.Peer(userID))
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	for _, peer := range peers {
		conn, ok := r.presence.Lookup(peer)
		if !ok {
			r.drop(event.CallEnded, userID, peer, "unreachable")
			continue
		}
		r.deliver(conn, event.New(event.CallEnded, event.HangUp{From: userID}), userID, peer)
	}
}

// Session returns the call between a and b in either direction.
func (r *CallRelay) Session(a, b string) (domain.CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionLocked(a, b)
}

func (r *CallRelay) sessionLocked(a, b string) (domain.CallSession, bool) {
	if s, ok := r.sessions[domain.CallKey{Caller: a, Callee: b}]; ok {
		return s, true
	}
	s, ok := r.sessions[domain.CallKey{Caller: b, Callee: a}]
	return s, ok
}

func (r *CallRelay) discardLocked(a, b string) {
	delete(r.sessions, domain.CallKey{Caller: a, Callee: b})
	delete(r.sessions, domain.CallKey{Caller: b, Callee: a})
}

func (r *CallRelay) deliver(conn contract.Conn, evt event.Outbound, from, to string) {
	if err := conn.Send(evt); err != nil {
		r.drop(evt.Name, from, to, "send_failed")
		return
	}
	r.metrics.SignalRelayed(string(evt.Name))
	r.log.Debug("Signal relayed", "event", evt.Name, "from", from, "to", to)
}

func (r *CallRelay) drop(name event.Name, from, to, reason string) {
	r.metrics.SignalDropped(reason)
	r.log.Debug("Signal dropped", "event", name, "from", from, "to", to, "reason", reason)
}
