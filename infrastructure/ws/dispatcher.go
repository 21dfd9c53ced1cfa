package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
)

// Inbound event names.
const (
	Identify        event.Name = "identify"
	GetOnlineUsers  event.Name = "getOnlineUsers"
	JoinRoom        event.Name = "joinRoom"
	LeaveRoom       event.Name = "leaveRoom"
	CreateCommunity event.Name = "createCommunity"
	JoinCommunity   event.Name = "joinCommunity"
	SendMessage     event.Name = "sendMessage"
	FileUpload      event.Name = "fileUpload"
	MarkAsSeen      event.Name = "markAsSeen"
	SearchMessages  event.Name = "searchMessages"
	CallUser        event.Name = "callUser"
	AnswerCall      event.Name = "answerCall"
	IceCandidate    event.Name = "iceCandidate"
	DeclineCall     event.Name = "declineCall"
	EndCall         event.Name = "endCall"
)

// Peer is a connection as seen by the dispatcher.
type Peer interface {
	contract.Conn
	AuthUserID() string
}

// Dispatcher routes decoded inbound events to the services. It runs on the
// processing loop of the originating connection, so events of one connection
// are handled in the order they arrived.
type Dispatcher struct {
	presence contract.IPresence
	router   contract.IRouter
	resolver services.IConversationResolver
	messages services.IMessageService
	calls    services.ICallRelay
	log      *slog.Logger
}

func NewDispatcher(
	presence contract.IPresence,
	router contract.IRouter,
	resolver services.IConversationResolver,
	messages services.IMessageService,
	calls services.ICallRelay,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		presence: presence,
		router:   router,
		resolver: resolver,
		messages: messages,
		calls:    calls,
		log:      log,
	}
}

// decode unmarshals and validates the payload of an inbound event.
func decode[T any, PT interface {
	*T
	domain.Command
}](data json.RawMessage) (PT, error) {
	var zero PT
	cmd := PT(new(T))
	if len(data) == 0 {
		return zero, fmt.Errorf("%w: missing data", errors.ErrProtocolViolation)
	}
	if err := json.Unmarshal(data, cmd); err != nil {
		return zero, fmt.Errorf("%w: %s", errors.ErrProtocolViolation, err.Error())
	}
	if err := domain.Validate(cmd); err != nil {
		return zero, err
	}
	return cmd, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, peer Peer, in event.Inbound) error {
	switch in.Name {
	case Identify:
		return d.identify(peer, in.Data)
	case GetOnlineUsers:
		cmd, err := decode[domain.GetOnlineUsers](in.Data)
		if err != nil {
			return err
		}
		return peer.Send(event.New(event.OnlineUsers, d.presence.Online(cmd.UserIDs)))
	case JoinRoom:
		return d.joinRoom(ctx, peer, in.Data)
	case LeaveRoom:
		cmd, err := decode[domain.LeaveRoom](in.Data)
		if err != nil {
			return err
		}
		d.router.Leave(peer, domain.RoomKey(cmd.RoomKey))
		return nil
	case CreateCommunity:
		cmd, err := decode[domain.CreateCommunity](in.Data)
		if err != nil {
			return err
		}
		community, err := d.resolver.CreateCommunity(ctx, cmd.DoctorIDs, cmd.PatientIDs)
		if err != nil {
			return err
		}
		return peer.Send(event.New(event.CommunityCreated, community))
	case JoinCommunity:
		return d.joinCommunity(ctx, peer, in.Data)
	case SendMessage:
		cmd, err := decode[domain.SendMessage](in.Data)
		if err != nil {
			return err
		}
		sender, err := d.actor(peer, cmd.SenderID)
		if err != nil {
			return err
		}
		// The room is derived from the stored conversation, a client supplied roomKey is ignored.
		_, err = d.messages.PostMessage(ctx, services.PostMessage{
			ConversationID: cmd.ConversationID,
			SenderID:       sender,
			Content:        cmd.Content,
			File:           cmd.File(),
		})
		return err
	case FileUpload:
		cmd, err := decode[domain.FileUpload](in.Data)
		if err != nil {
			return err
		}
		sender, err := d.actor(peer, cmd.SenderID)
		if err != nil {
			return err
		}
		_, err = d.messages.PostMessage(ctx, services.PostMessage{
			ConversationID: cmd.ConversationID,
			SenderID:       sender,
			File:           cmd.File(),
		})
		return err
	case MarkAsSeen:
		cmd, err := decode[domain.MarkAsSeen](in.Data)
		if err != nil {
			return err
		}
		// Any participant may record receipts for another one. Repeating a
		// call adds no receipt.
		actorID, _ := d.actor(peer, "")
		_, err = d.messages.MarkSeenFor(ctx, actorID, cmd.UserID, cmd.ConversationID, cmd.LastSeenMessageID)
		return err
	case SearchMessages:
		cmd, err := decode[domain.SearchMessages](in.Data)
		if err != nil {
			return err
		}
		requester, _ := d.actor(peer, "")
		result, err := d.messages.Search(ctx, requester, cmd.ConversationID, cmd.Query, cmd.Limit)
		if err != nil {
			return err
		}
		return peer.Send(event.New(event.SearchResults, result))
	case CallUser:
		cmd, err := decode[domain.CallUser](in.Data)
		if err != nil {
			return err
		}
		from, err := d.actor(peer, cmd.From)
		if err != nil {
			return err
		}
		return d.calls.CallUser(from, cmd.UserToCall, cmd.Name, cmd.SignalData)
	case AnswerCall:
		cmd, err := decode[domain.AnswerCall](in.Data)
		if err != nil {
			return err
		}
		from, err := d.actor(peer, cmd.From)
		if err != nil {
			return err
		}
		return d.calls.AnswerCall(from, cmd.To, cmd.Signal)
	case IceCandidate:
		cmd, err := decode[domain.IceCandidate](in.Data)
		if err != nil {
			return err
		}
		from, err := d.actor(peer, cmd.From)
		if err != nil {
			return err
		}
		return d.calls.Signal(from, cmd.To, cmd.Candidate)
	case DeclineCall, EndCall:
		cmd, err := decode[domain.HangUp](in.Data)
		if err != nil {
			return err
		}
		from, err := d.actor(peer, cmd.From)
		if err != nil {
			return err
		}
		if in.Name == DeclineCall {
			return d.calls.DeclineCall(from, cmd.To)
		}
		return d.calls.EndCall(from, cmd.To)
	default:
		return fmt.Errorf("%w: unknown event %q", errors.ErrProtocolViolation, in.Name)
	}
}

func (d *Dispatcher) identify(peer Peer, data json.RawMessage) error {
	cmd, err := decode[domain.Identify](data)
	if err != nil {
		return err
	}
	if auth := peer.AuthUserID(); auth != "" && auth != cmd.UserID {
		return fmt.Errorf("%w: token was issued to another user", errors.ErrUnauthorized)
	}
	if replaced, ok := d.presence.Bind(cmd.UserID, peer); ok {
		// The old connection stops receiving the user's rooms.
		d.router.LeaveAll(replaced)
		d.log.Info("User moved to a new connection", "user_id", cmd.UserID,
			"connection_id", peer.ID(), "replaced_connection_id", replaced.ID())
	}
	return nil
}

func (d *Dispatcher) joinRoom(ctx context.Context, peer Peer, data json.RawMessage) error {
	cmd, err := decode[domain.JoinRoom](data)
	if err != nil {
		return err
	}
	self, err := d.actor(peer, cmd.SelfID)
	if err != nil {
		return err
	}
	undo := d.subscribe(peer, domain.PrivateRoomKey(self, cmd.PeerID))
	conversation, history, _, err := d.resolver.ResolvePrivate(ctx, self, cmd.PeerID)
	if err != nil {
		undo()
		return err
	}
	return d.enter(peer, conversation, history)
}

func (d *Dispatcher) joinCommunity(ctx context.Context, peer Peer, data json.RawMessage) error {
	cmd, err := decode[domain.JoinCommunity](data)
	if err != nil {
		return err
	}
	userID, err := d.actor(peer, cmd.UserID)
	if err != nil && !errors.Is(err, errors.ErrProtocolViolation) {
		return err
	}
	undo := d.subscribe(peer, domain.CommunityRoomKey(cmd.ConversationID))
	conversation, history, err := d.resolver.Resolve(ctx, cmd.ConversationID)
	switch {
	case err != nil:
	case conversation.Kind != domain.Community:
		err = fmt.Errorf("%w: %s is not a community", errors.ErrNotFound, cmd.ConversationID)
	case userID != "" && !conversation.HasParticipant(userID):
		err = fmt.Errorf("%w: %s is not a member of %s", errors.ErrUnauthorized, userID, conversation.ID)
	}
	if err != nil {
		undo()
		return err
	}
	return d.enter(peer, conversation, history)
}

// subscribe joins room before its history is read, so a message stored in
// between reaches the peer as a broadcast. The peer may then get a message
// both ways and is expected to drop duplicates by id. The returned func
// leaves the room again unless the peer was already in it.
func (d *Dispatcher) subscribe(peer Peer, room domain.RoomKey) func() {
	for _, member := range d.router.Members(room) {
		if member.ID() == peer.ID() {
			return func() {}
		}
	}
	d.router.Join(peer, room)
	return func() { d.router.Leave(peer, room) }
}

// enter makes sure the peer is in the conversation's room then sends its id and history.
func (d *Dispatcher) enter(peer Peer, conversation domain.Conversation, history []domain.Message) error {
	d.router.Join(peer, conversation.RoomKey())
	if err := peer.Send(event.New(event.ConversationID, conversation.ID)); err != nil {
		return err
	}
	return peer.Send(event.New(event.PreviousMessages, history))
}

// actor returns the identity acting on this connection. A bound or
// token-proven identity wins and a payload naming someone else is refused;
// an anonymous connection is trusted with the id it claims.
func (d *Dispatcher) actor(peer Peer, claimed string) (string, error) {
	known, ok := d.presence.IdentityOf(peer)
	if !ok {
		known = peer.AuthUserID()
	}
	switch {
	case known == "" && claimed == "":
		return "", fmt.Errorf("%w: sender identity is unknown", errors.ErrProtocolViolation)
	case known == "":
		return claimed, nil
	case claimed == "" || claimed == known:
		return known, nil
	default:
		return "", fmt.Errorf("%w: connection acts as %s, not %s", errors.ErrUnauthorized, known, claimed)
	}
}

// Disconnect clears everything the connection left behind. Calls are only
// ended when this connection still held its user's presence, a user who
// reconnected elsewhere keeps its calls.
func (d *Dispatcher) Disconnect(peer Peer) {
	userID, current := d.presence.Unbind(peer)
	d.router.LeaveAll(peer)
	if current {
		d.calls.Disconnect(userID)
	}
	d.log.Debug("Connection cleaned up", "connection_id", peer.ID(), "user_id", userID, "was_current", current)
}
