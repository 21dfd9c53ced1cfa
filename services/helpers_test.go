package services_test

import (
	"log/slog"
	"sync"
	"testing"

	"chat-relay/domain/event"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var log = logs.GetLoggerFromLevel(slog.LevelDebug)

type fakeConn struct {
	id       string
	mu       sync.Mutex
	received []event.Outbound
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(evt event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, evt)
	return nil
}

func (c *fakeConn) events() []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Outbound(nil), c.received...)
}

func (c *fakeConn) named(name event.Name) []event.Outbound {
	var out []event.Outbound
	for _, e := range c.events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func newRepository(t *testing.T) repositories.ConversationRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewConversationRepository(db, log)
}
