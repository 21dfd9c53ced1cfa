package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/domain/event"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestPresence_BindLookupUnbind(t *testing.T) {
	req := require.New(t)
	publisher := &recordingPublisher{}
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), publisher)
	conn := newFakeConn("c1")

	// Given nobody is online
	_, ok := presence.Lookup("doc1")
	req.False(ok)

	// When doc1 binds
	_, replaced := presence.Bind("doc1", conn)

	// Then doc1 is reachable through its connection
	req.False(replaced)
	found, ok := presence.Lookup("doc1")
	req.True(ok)
	req.Equal(conn, found)
	req.Equal(1, presence.Count())
	req.Equal(map[string]string{"doc1": "c1"}, presence.Online([]string{"doc1", "pat1"}))

	// When the connection is unbound
	userID, cleared := presence.Unbind(conn)

	// Then doc1 is offline
	req.True(cleared)
	req.Equal("doc1", userID)
	_, ok = presence.Lookup("doc1")
	req.False(ok)
	req.Equal(0, presence.Count())
	req.Len(publisher.events, 2)
	req.IsType(event.UserOnline{}, publisher.events[0])
	req.IsType(event.UserOffline{}, publisher.events[1])
}

func TestPresence_StaleUnbindKeepsNewBinding(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	first := newFakeConn("c1")
	second := newFakeConn("c2")

	// Given doc1 reconnected on a second connection
	presence.Bind("doc1", first)
	replaced, ok := presence.Bind("doc1", second)
	req.True(ok)
	req.Equal(first, replaced)

	// Then the first connection no longer speaks for doc1
	_, ok = presence.IdentityOf(first)
	req.False(ok)
	userID, ok := presence.IdentityOf(second)
	req.True(ok)
	req.Equal("doc1", userID)

	// When the first connection finally closes
	_, cleared := presence.Unbind(first)

	// Then the newer binding survives
	req.False(cleared)
	found, ok := presence.Lookup("doc1")
	req.True(ok)
	req.Equal(second, found)
	req.Equal(1, presence.Count())
}

func TestPresence_RebindToAnotherIdentity(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	conn := newFakeConn("c1")

	presence.Bind("doc1", conn)
	presence.Bind("doc2", conn)

	_, ok := presence.Lookup("doc1")
	req.False(ok)
	userID, ok := presence.IdentityOf(conn)
	req.True(ok)
	req.Equal("doc2", userID)
}

func TestPresence_ConcurrentBinds(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn(fmt.Sprintf("c%d", i))
			presence.Bind(fmt.Sprintf("user%d", i%10), conn)
		}(i)
	}
	wg.Wait()

	// Then each identity is bound to exactly one connection
	req.Equal(10, presence.Count())
	for i := 0; i < 10; i++ {
		_, ok := presence.Lookup(fmt.Sprintf("user%d", i))
		req.True(ok)
	}
}
