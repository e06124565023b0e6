package imap

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Failure categories of an ingestion. Every error returned by Session or
// Service wraps exactly one of these together with the underlying cause, so
// callers can test both with errors.Is.
var (
	// ErrConnection covers dial, TLS, authentication and mailbox selection.
	ErrConnection = errors.New("imap connection failed")
	// ErrSearch is returned when the UNSEEN search command fails.
	ErrSearch = errors.New("imap search failed")
	// ErrFetch is returned when streaming the message body fails. Any bytes
	// read before the failure are discarded.
	ErrFetch = errors.New("imap fetch failed")
	// ErrParse is returned when the fetched message cannot be parsed.
	ErrParse = errors.New("message parse failed")
)

// IsTimeout reports whether err was caused by a deadline: the caller's
// context, a dial timeout or an IMAP command timeout. Timeouts are worth
// retrying; other failures usually are not.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}
