package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"chat-relay/auth"
	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	v := auth.NewTokenVerifier("test-secret")

	token, err := v.GenerateToken("doc1", time.Hour)
	req.NoError(err)

	userID, err := v.Verify(token)
	req.NoError(err)
	req.Equal("doc1", userID)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	req := require.New(t)
	v := auth.NewTokenVerifier("test-secret")

	// Given a token signed with another secret and an expired one
	foreign, err := auth.NewTokenVerifier("other-secret").GenerateToken("doc1", time.Hour)
	req.NoError(err)
	expired, err := v.GenerateToken("doc1", -time.Minute)
	req.NoError(err)

	for _, token := range []string{foreign, expired, "not-a-token"} {
		_, err := v.Verify(token)
		req.ErrorIs(err, errors.ErrUnauthorized)
	}
}

func TestAuthenticate(t *testing.T) {
	v := auth.NewTokenVerifier("test-secret")
	token, err := v.GenerateToken("pat1", time.Hour)
	require.NoError(t, err)

	t.Run("should let everything through when disabled", func(t *testing.T) {
		req := require.New(t)
		userID, err := auth.Authenticate(auth.NewTokenVerifier(""), httptest.NewRequest("GET", "/ws", nil))
		req.NoError(err)
		req.Empty(userID)
	})

	t.Run("should fail when token is missing", func(t *testing.T) {
		req := require.New(t)
		_, err := auth.Authenticate(v, httptest.NewRequest("GET", "/ws", nil))
		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("should read bearer header", func(t *testing.T) {
		req := require.New(t)
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		userID, err := auth.Authenticate(v, r)
		req.NoError(err)
		req.Equal("pat1", userID)
	})

	t.Run("should read query parameter", func(t *testing.T) {
		req := require.New(t)
		userID, err := auth.Authenticate(v, httptest.NewRequest("GET", "/ws?token="+token, nil))
		req.NoError(err)
		req.Equal("pat1", userID)
	})
}

func TestUserIDContext(t *testing.T) {
	req := require.New(t)
	req.Empty(auth.UserIDFrom(context.Background()))
	req.Equal("doc1", auth.UserIDFrom(auth.WithUserID(context.Background(), "doc1")))
}
