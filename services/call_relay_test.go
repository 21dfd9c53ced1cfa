package services_test

import (
	"encoding/json"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/stretchr/testify/require"
)

type callFixture struct {
	presence *runtime.Presence
	relay    *services.CallRelay
	doc      *fakeConn
	pat      *fakeConn
}

func newCallFixture() callFixture {
	presence := runtime.NewPresence(log, nil)
	f := callFixture{
		presence: presence,
		relay:    services.NewCallRelay(presence, nil, log),
		doc:      newFakeConn("c-doc1"),
		pat:      newFakeConn("c-pat1"),
	}
	presence.Bind("doc1", f.doc)
	presence.Bind("pat1", f.pat)
	return f
}

var offer = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

func TestCallRelay_FullCall(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()

	// When doc1 calls pat1
	req.NoError(f.relay.CallUser("doc1", "pat1", "Dr One", offer))

	// Then pat1 rings and a session exists
	incoming := f.pat.named(event.CallUser)
	req.Len(incoming, 1)
	req.Equal(event.IncomingCall{Signal: offer, From: "doc1", Name: "Dr One"}, incoming[0].Payload)
	session, ok := f.relay.Session("pat1", "doc1")
	req.True(ok)
	req.Equal(domain.CallRinging, session.State)

	// When pat1 answers and both exchange candidates
	answer := json.RawMessage(`{"type":"answer"}`)
	req.NoError(f.relay.AnswerCall("pat1", "doc1", answer))
	req.NoError(f.relay.Signal("doc1", "pat1", json.RawMessage(`{"candidate":"a"}`)))
	req.NoError(f.relay.Signal("pat1", "doc1", json.RawMessage(`{"candidate":"b"}`)))

	// Then the caller got the answer and the session is connected
	accepted := f.doc.named(event.CallAccepted)
	req.Len(accepted, 1)
	req.Equal(event.Accepted{Signal: answer, From: "pat1"}, accepted[0].Payload)
	session, _ = f.relay.Session("doc1", "pat1")
	req.Equal(domain.CallConnected, session.State)
	req.Len(f.pat.named(event.IceCandidate), 1)
	req.Len(f.doc.named(event.IceCandidate), 1)

	// When doc1 hangs up
	req.NoError(f.relay.EndCall("doc1", "pat1"))

	// Then pat1 is told and the session is gone
	req.Len(f.pat.named(event.CallEnded), 1)
	_, ok = f.relay.Session("doc1", "pat1")
	req.False(ok)
}

func TestCallRelay_OfflineCalleeIsSilentlyDropped(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()

	req.NoError(f.relay.CallUser("doc1", "pat2", "Dr One", offer))

	_, ok := f.relay.Session("doc1", "pat2")
	req.False(ok)
	req.Empty(f.doc.events())
}

func TestCallRelay_StaleAnswerIsDropped(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()

	// Given no ringing call, an answer goes nowhere
	req.NoError(f.relay.AnswerCall("pat1", "doc1", offer))
	req.Empty(f.doc.events())

	// Given a declined call, a late answer goes nowhere either
	req.NoError(f.relay.CallUser("doc1", "pat1", "Dr One", offer))
	req.NoError(f.relay.DeclineCall("pat1", "doc1"))
	req.NoError(f.relay.AnswerCall("pat1", "doc1", offer))

	req.Len(f.doc.named(event.CallDeclined), 1)
	req.Empty(f.doc.named(event.CallAccepted))
}

func TestCallRelay_CandidateWithoutSessionIsDropped(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()

	req.NoError(f.relay.Signal("doc1", "pat1", json.RawMessage(`{}`)))

	req.Empty(f.pat.events())
}

func TestCallRelay_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()
	req.NoError(f.relay.CallUser("doc1", "pat1", "Dr One", offer))

	// When the caller drops
	f.relay.Disconnect("doc1")

	// Then the callee is released
	ended := f.pat.named(event.CallEnded)
	req.Len(ended, 1)
	req.Equal(event.HangUp{From: "doc1"}, ended[0].Payload)
	_, ok := f.relay.Session("doc1", "pat1")
	req.False(ok)
}

func TestCallRelay_Invalid(t *testing.T) {
	req := require.New(t)
	f := newCallFixture()

	req.ErrorIs(f.relay.CallUser("", "pat1", "", offer), errors.ErrProtocolViolation)
	req.ErrorIs(f.relay.CallUser("doc1", "doc1", "", offer), errors.ErrProtocolViolation)
	req.ErrorIs(f.relay.EndCall("doc1", ""), errors.ErrProtocolViolation)
}
