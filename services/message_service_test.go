package services_test

import (
	"context"
	"sync"
	"testing"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/domain/search"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type messageFixture struct {
	repository repositories.ConversationRepository
	resolver   *services.ConversationResolver
	router     *runtime.Router
	service    *services.MessageService
}

func newMessageFixture(t *testing.T, publisher contract.IPublisher, moderator contract.IModerator, index contract.ISearchIndex) messageFixture {
	repository := newRepository(t)
	router := runtime.NewRouter(log, nil)
	return messageFixture{
		repository: repository,
		resolver:   services.NewConversationResolver(repository, log),
		router:     router,
		service:    services.NewMessageService(repository, router, publisher, moderator, index, nil, log),
	}
}

func TestMessageService_PrivateScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	f := newMessageFixture(t, publisher, nil, nil)

	// Given doc1 and pat1 both joined their private room
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)
	doc, pat := newFakeConn("c-doc1"), newFakeConn("c-pat1")
	f.router.Join(doc, conversation.RoomKey())
	f.router.Join(pat, domain.PrivateRoomKey("pat1", "doc1"))

	publisher.EXPECT().Publish(gomock.AssignableToTypeOf(event.MessagePosted{})).Times(2)

	// When doc1 sends "hi" and pat1 answers
	first, err := f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "doc1", Content: "hi"})
	req.NoError(err)
	second, err := f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "pat1", Content: "hello"})
	req.NoError(err)

	// Then ids grow and both members received both messages in order
	req.Equal(uint64(1), first.ID)
	req.Equal(uint64(2), second.ID)
	for _, conn := range []*fakeConn{doc, pat} {
		received := conn.named(event.ReceivedMessage)
		req.Len(received, 2)
		req.Equal("hi", received[0].Payload.(domain.Message).Content)
		req.Equal("hello", received[1].Payload.(domain.Message).Content)
	}

	// When pat1 marks everything up to the first message as seen
	update, err := f.service.MarkSeen(ctx, "pat1", conversation.ID, first.ID)

	// Then only message 1 carries pat1's receipt, and both members learn it
	req.NoError(err)
	req.Len(update.UpdatedMessages, 1)
	req.True(update.UpdatedMessages[0].SeenByUser("pat1"))
	for _, conn := range []*fakeConn{doc, pat} {
		seen := conn.named(event.MessagesSeen)
		req.Len(seen, 1)
		req.Equal(first.ID, seen[0].Payload.(event.SeenUpdate).LastSeenMessageID)
	}

	// When the same call is replayed
	_, err = f.service.MarkSeen(ctx, "pat1", conversation.ID, first.ID)
	req.NoError(err)

	// Then there is still exactly one receipt
	history, err := f.repository.ListMessages(conversation.ID)
	req.NoError(err)
	req.Len(history[0].SeenBy, 1)
	req.Empty(history[1].SeenBy)
}

func TestMessageService_CommunitySenderRules(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockIPublisher(ctrl)
	f := newMessageFixture(t, publisher, nil, nil)

	community, err := f.resolver.CreateCommunity(ctx, []string{"doc1"}, []string{"pat1", "pat2"})
	req.NoError(err)
	member := newFakeConn("c-pat2")
	f.router.Join(member, community.RoomKey())

	// When a patient posts to the community
	_, err = f.service.PostMessage(ctx, services.PostMessage{ConversationID: community.ID, SenderID: "pat1", Content: "question"})

	// Then it is refused and nothing is stored or broadcast
	req.ErrorIs(err, errors.ErrUnauthorized)
	history, err := f.repository.ListMessages(community.ID)
	req.NoError(err)
	req.Empty(history)
	req.Empty(member.events())

	// When the doctor posts
	publisher.EXPECT().Publish(gomock.Any()).Times(1)
	_, err = f.service.PostMessage(ctx, services.PostMessage{ConversationID: community.ID, SenderID: "doc1", Content: "answer"})

	// Then every member receives it
	req.NoError(err)
	req.Len(member.named(event.ReceivedMessage), 1)
}

func TestMessageService_PostMessage_Errors(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture(t, nil, nil, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  services.PostMessage
		want error
	}{
		{"unknown conversation", services.PostMessage{ConversationID: "missing", SenderID: "doc1", Content: "hi"}, errors.ErrNotFound},
		{"outsider", services.PostMessage{ConversationID: conversation.ID, SenderID: "pat2", Content: "hi"}, errors.ErrUnauthorized},
		{"empty", services.PostMessage{ConversationID: conversation.ID, SenderID: "doc1", Content: "  "}, errors.ErrProtocolViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.PostMessage(ctx, tt.cmd)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMessageService_FileOnlyMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil, nil, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)

	file := &domain.FileRef{URL: "/files/a.png", MimeType: "image/png", Name: "scan.png"}
	msg, err := f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "pat1", File: file})

	req.NoError(err)
	req.Equal(domain.FileUploadedContent, msg.Content)
	req.Equal(file, msg.File)
}

func TestMessageService_Moderation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	moderator := mocks.NewMockIModerator(ctrl)
	f := newMessageFixture(t, nil, moderator, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)

	moderator.EXPECT().Censor("you idiot").Return("you *****", []string{"idiot"})

	msg, err := f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "doc1", Content: "you idiot"})

	req.NoError(err)
	req.Equal("you *****", msg.Content)
}

func TestMessageService_MarkSeen_Outsider(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil, nil, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)

	_, err = f.service.MarkSeen(ctx, "pat2", conversation.ID, 1)

	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestMessageService_MarkSeen_Concurrent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil, nil, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)
	for i := 0; i < 5; i++ {
		_, err := f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "doc1", Content: "ping"})
		req.NoError(err)
	}

	// When pat1 marks overlapping ranges concurrently
	var wg sync.WaitGroup
	for _, watermark := range []uint64{3, 5, 4, 5, 2} {
		wg.Add(1)
		go func(watermark uint64) {
			defer wg.Done()
			_, err := f.service.MarkSeen(ctx, "pat1", conversation.ID, watermark)
			require.NoError(t, err)
		}(watermark)
	}
	wg.Wait()

	// Then every message has exactly one receipt from pat1
	history, err := f.repository.ListMessages(conversation.ID)
	req.NoError(err)
	for _, msg := range history {
		req.Len(msg.SeenBy, 1)
		req.Equal("pat1", msg.SeenBy[0].UserID)
	}
}

func TestMessageService_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	index := mocks.NewMockISearchIndex(ctrl)
	f := newMessageFixture(t, nil, nil, index)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)

	hits := []search.Hit{{MessageID: 1, SenderID: "doc1", Content: "invoice attached"}}
	index.EXPECT().
		Search(search.Query{RawInput: "invoice --from doc1", Terms: "invoice", SenderID: "doc1", ConversationID: conversation.ID, Limit: 5}).
		Return(hits, nil)

	result, err := f.service.Search(ctx, "pat1", conversation.ID, "invoice --from doc1", 5)
	req.NoError(err)
	req.Equal(hits, result.Hits)

	_, err = f.service.Search(ctx, "pat2", conversation.ID, "invoice", 5)
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestMessageService_MarkSeenFor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newMessageFixture(t, nil, nil, nil)
	conversation, _, _, err := f.resolver.ResolvePrivate(ctx, "doc1", "pat1")
	req.NoError(err)
	_, err = f.service.PostMessage(ctx, services.PostMessage{ConversationID: conversation.ID, SenderID: "doc1", Content: "hello"})
	req.NoError(err)
	_, err = f.service.MarkSeen(ctx, "pat1", conversation.ID, 1)
	req.NoError(err)

	// When doc1 repeats pat1's call
	update, err := f.service.MarkSeenFor(ctx, "doc1", "pat1", conversation.ID, 1)

	// Then nothing new is stamped
	req.NoError(err)
	req.Len(update.UpdatedMessages, 1)
	req.Len(update.UpdatedMessages[0].SeenBy, 1)

	// When someone outside the conversation does the same
	_, err = f.service.MarkSeenFor(ctx, "pat9", "pat1", conversation.ID, 1)

	// Then it is refused
	req.ErrorIs(err, errors.ErrUnauthorized)
}
