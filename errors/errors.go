package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrUnauthorized      = fmt.Errorf("unauthorized")
	ErrUnreachable       = fmt.Errorf("target unreachable")
	ErrStoreFailure      = fmt.Errorf("store failure")
	ErrProtocolViolation = fmt.Errorf("protocol violation")

	ErrUnsupportedFileType = fmt.Errorf("unsupported file type")
	ErrFileTooLarge        = fmt.Errorf("file too large")
	ErrConnectionClosed    = fmt.Errorf("connection closed")
	ErrSlowConsumer        = fmt.Errorf("outgoing queue full")
	ErrRateLimited         = fmt.Errorf("rate limited")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ClientMessage maps an error to the text sent back to the originating
// connection inside an "error" event. The boolean is false when the error is
// not part of the classified taxonomy and should be logged as internal.
func ClientMessage(err error) (string, bool) {
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, ErrProtocolViolation):
		return "Invalid request: " + unwrapDetail(err, ErrProtocolViolation), true
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to perform this action.", true
	case errors.Is(err, ErrNotFound):
		return "Resource not found: " + unwrapDetail(err, ErrNotFound), true
	case errors.Is(err, ErrUnsupportedFileType):
		return "File upload only supports jpeg, png, gif and pdf files.", true
	case errors.Is(err, ErrFileTooLarge):
		return "File is too large.", true
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, slow down.", true
	case errors.Is(err, ErrStoreFailure):
		return "Storage unavailable, please try again later.", true
	default:
		return "Internal server error", false
	}
}

// unwrapDetail strips the sentinel prefix from a wrapped message so that
// "protocol violation: missing peerId" becomes "missing peerId".
func unwrapDetail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
