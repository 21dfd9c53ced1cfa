//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"io"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/domain/search"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't need a Name method.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one live client connection as seen by the routing layer.
// Send never blocks: it enqueues or fails.
type Conn interface {
	ID() string
	Send(evt event.Outbound) error
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPublisher accepts domain events for asynchronous fan-out.
type IPublisher interface {
	Publish(e event.DomainEvent)
}

type IPresence interface {
	Bind(userID string, conn Conn) (Conn, bool)
	Unbind(conn Conn) (string, bool)
	Lookup(userID string) (Conn, bool)
	IdentityOf(conn Conn) (string, bool)
	Online(userIDs []string) map[string]string
	Count() int
}

type IRouter interface {
	Join(conn Conn, room domain.RoomKey)
	Leave(conn Conn, room domain.RoomKey)
	LeaveAll(conn Conn)
	Broadcast(room domain.RoomKey, evt event.Outbound) int
	Members(room domain.RoomKey) []Conn
}

type IConversationRepository interface {
	FindOrCreatePrivate(a, b string) (domain.Conversation, bool, error)
	CreateCommunity(doctorIDs, patientIDs []string) (domain.Conversation, error)
	Get(conversationID string) (domain.Conversation, error)
	AppendMessage(msg domain.Message) (domain.Message, error)
	ListMessages(conversationID string) ([]domain.Message, error)
	MarkSeen(conversationID, userID string, watermark uint64) ([]domain.Message, int, error)
}

type IUserRepository interface {
	SetOnline(userID, connectionID string) error
	SetOffline(userID, connectionID string) error
	Get(userID string) (domain.User, error)
}

type IBlobStore interface {
	Put(name string, r io.Reader) (domain.FileRef, error)
	Open(name string) (io.ReadCloser, error)
}

type ISearchIndex interface {
	IndexBatch(messages []domain.Message) error
	Search(q search.Query) ([]search.Hit, error)
}

type IModerator interface {
	Censor(content string) (string, []string)
}
