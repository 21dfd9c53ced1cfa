package runtime

import (
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

type members map[string]contract.Conn // connection id -> connection

// Router keeps room memberships of live connections and fans events out to them.
// Memberships are never persisted, a reconnecting client joins again.
type Router struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	mu          sync.RWMutex
	rooms       map[domain.RoomKey]members
	memberships map[string]map[domain.RoomKey]struct{} // connection id -> rooms
}

func NewRouter(log *slog.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		log:         log,
		metrics:     metrics,
		rooms:       make(map[domain.RoomKey]members),
		memberships: make(map[string]map[domain.RoomKey]struct{}),
	}
}

// Join adds conn to room. Joining twice is a no-op.
func (r *Router) Join(conn contract.Conn, room domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(members)
	}
	r.rooms[room][conn.ID()] = conn

	if _, ok := r.memberships[conn.ID()]; !ok {
		r.memberships[conn.ID()] = make(map[domain.RoomKey]struct{})
	}
	r.memberships[conn.ID()][room] = struct{}{}
	r.metrics.SetRooms(len(r.rooms))
}

func (r *Router) Leave(conn contract.Conn, room domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(conn.ID(), room)
	r.metrics.SetRooms(len(r.rooms))
}

// LeaveAll removes conn from every room it joined.
func (r *Router) LeaveAll(conn contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.memberships[conn.ID()] {
		r.leave(conn.ID(), room)
	}
	delete(r.memberships, conn.ID())
	r.metrics.SetRooms(len(r.rooms))
}

// leave must be called with the lock held. Empty entries are removed
// so that the maps don't grow with every room ever used.
func (r *Router) leave(connID string, room domain.RoomKey) {
	if m, ok := r.rooms[room]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.memberships[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberships, connID)
		}
	}
}

// Broadcast sends evt to the members of room at the time of the call.
// A member that fails to accept the event doesn't prevent delivery to the others.
// It returns the number of members that accepted the event.
func (r *Router) Broadcast(room domain.RoomKey, evt event.Outbound) int {
	delivered := 0
	for _, conn := range r.Members(room) {
		if err := conn.Send(evt); err != nil {
			r.log.Debug("Broadcast skipped a member", "room", room, "connection_id", conn.ID(),
				"event", evt.Name, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns a snapshot of the connections in room.
func (r *Router) Members(room domain.RoomKey) []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.rooms[room]
	snapshot := make([]contract.Conn, 0, len(m))
	for _, conn := range m {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Rooms returns the number of rooms with at least one member.
func (r *Router) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
