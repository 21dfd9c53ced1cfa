package runtime

import (
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestRouter_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	router := NewRouter(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	conn := newFakeConn("c1")
	room := domain.PrivateRoomKey("doc1", "pat1")

	router.Join(conn, room)
	router.Join(conn, room)

	req.Len(router.Members(room), 1)
	req.Equal(1, router.Rooms())
}

func TestRouter_BroadcastReachesEveryMember(t *testing.T) {
	req := require.New(t)
	router := NewRouter(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	doc := newFakeConn("c1")
	pat := newFakeConn("c2")
	outsider := newFakeConn("c3")
	room := domain.PrivateRoomKey("doc1", "pat1")

	// Given both sides joined the same room, in opposite orders
	router.Join(doc, domain.PrivateRoomKey("doc1", "pat1"))
	router.Join(pat, domain.PrivateRoomKey("pat1", "doc1"))
	router.Join(outsider, domain.PrivateRoomKey("doc1", "pat2"))

	// When a message is broadcast
	delivered := router.Broadcast(room, event.New(event.ReceivedMessage, "hello"))

	// Then exactly the two members receive it
	req.Equal(2, delivered)
	req.Len(doc.events(), 1)
	req.Len(pat.events(), 1)
	req.Empty(outsider.events())
}

func TestRouter_FailingMemberDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	router := NewRouter(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	broken := newFakeConn("c1")
	broken.closed = true
	healthy := newFakeConn("c2")
	room := domain.CommunityRoomKey("c-1")
	router.Join(broken, room)
	router.Join(healthy, room)

	delivered := router.Broadcast(room, event.New(event.ReceivedMessage, "hello"))

	req.Equal(1, delivered)
	req.Len(healthy.events(), 1)
}

func TestRouter_LeaveAll(t *testing.T) {
	req := require.New(t)
	router := NewRouter(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	conn := newFakeConn("c1")
	other := newFakeConn("c2")
	router.Join(conn, domain.PrivateRoomKey("a", "b"))
	router.Join(conn, domain.CommunityRoomKey("x"))
	router.Join(other, domain.CommunityRoomKey("x"))

	// When the connection goes away
	router.LeaveAll(conn)

	// Then it is a member of nothing and empty rooms are gone
	req.Empty(router.Members(domain.PrivateRoomKey("a", "b")))
	req.Len(router.Members(domain.CommunityRoomKey("x")), 1)
	req.Equal(1, router.Rooms())

	router.Leave(other, domain.CommunityRoomKey("x"))
	req.Equal(0, router.Rooms())
}
