package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"chat-relay/errors"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Authenticate extracts the handshake token from the Authorization header,
// falling back to the "token" query parameter since browsers cannot set
// headers on a WebSocket upgrade. It returns an empty user id when the
// verifier is disabled.
func Authenticate(v TokenVerifier, r *http.Request) (string, error) {
	if !v.Enabled() {
		return "", nil
	}
	tokenStr := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenStr == "" {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return "", fmt.Errorf("%w: token is missing", errors.ErrUnauthorized)
	}
	return v.Verify(tokenStr)
}

// WithUserID injects the authenticated identity for downstream layers.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserIDFrom returns the authenticated identity, empty when none was checked.
func UserIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
