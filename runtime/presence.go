package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// Presence maps a user identity to its single live connection.
//
// Each identity is updated with an atomic swap or compare-and-delete, so
// binds of different users never contend and a stale connection can never
// clear the binding of the one that replaced it.
// Conn values must be comparable, connections are pointers.
type Presence struct {
	log       *slog.Logger
	publisher contract.IPublisher
	byUser    sync.Map // userID -> contract.Conn
	byConn    sync.Map // connection id -> userID
	online    atomic.Int64
}

// NewPresence returns an empty registry. publisher may be nil.
func NewPresence(log *slog.Logger, publisher contract.IPublisher) *Presence {
	return &Presence{log: log, publisher: publisher}
}

// Bind associates conn with userID and returns the connection it replaced, if any.
// A connection re-identifying as another user first loses its previous identity.
// The replaced connection loses its identity too, it has to identify again to
// act as a known user.
func (p *Presence) Bind(userID string, conn contract.Conn) (contract.Conn, bool) {
	if prev, ok := p.byConn.Load(conn.ID()); ok && prev.(string) != userID {
		p.Unbind(conn)
	}
	p.byConn.Store(conn.ID(), userID)
	old, loaded := p.byUser.Swap(userID, conn)
	if !loaded {
		p.online.Add(1)
	}
	p.publish(event.UserOnline{UserID: userID, ConnectionID: conn.ID(), At: time.Now().UTC()})

	if !loaded {
		return nil, false
	}
	replaced := old.(contract.Conn)
	if replaced == conn {
		return nil, false
	}
	p.byConn.CompareAndDelete(replaced.ID(), userID)
	p.log.Debug("Identity rebound to a new connection", "user_id", userID,
		"connection_id", conn.ID(), "replaced_connection_id", replaced.ID())
	return replaced, true
}

// Unbind clears the binding of conn. It reports the identity conn was bound to
// and whether the binding was still current, in which case the user is now offline.
func (p *Presence) Unbind(conn contract.Conn) (string, bool) {
	v, ok := p.byConn.LoadAndDelete(conn.ID())
	if !ok {
		return "", false
	}
	userID := v.(string)
	if !p.byUser.CompareAndDelete(userID, conn) {
		return userID, false
	}
	p.online.Add(-1)
	p.publish(event.UserOffline{UserID: userID, ConnectionID: conn.ID(), At: time.Now().UTC()})
	return userID, true
}

// Lookup returns the live connection of userID. Absence means offline.
func (p *Presence) Lookup(userID string) (contract.Conn, bool) {
	v, ok := p.byUser.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(contract.Conn), true
}

// IdentityOf returns the identity conn is bound to.
func (p *Presence) IdentityOf(conn contract.Conn) (string, bool) {
	v, ok := p.byConn.Load(conn.ID())
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Online returns the connection id of every listed user that is online.
func (p *Presence) Online(userIDs []string) map[string]string {
	online := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if conn, ok := p.Lookup(id); ok {
			online[id] = conn.ID()
		}
	}
	return online
}

func (p *Presence) Count() int {
	return int(p.online.Load())
}

func (p *Presence) publish(e event.DomainEvent) {
	if p.publisher != nil {
		p.publisher.Publish(e)
	}
}
