package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
	"github.com/vdavid/mailtrace/internal/logging"
)

const inboxName = "INBOX"

// SessionConfig holds everything needed to open one mailbox session.
type SessionConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	// UseTLS selects implicit TLS. It is always true outside of tests.
	UseTLS bool
	// InsecureSkipVerify accepts any server certificate, e.g. self-signed ones.
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	// CommandTimeout bounds every IMAP command, including the body fetch.
	CommandTimeout time.Duration
}

// Address returns host:port.
func (c SessionConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Session performs a single connect, search, fetch, disconnect cycle.
// A Session is cheap; build a new one for every fetch instead of sharing it.
type Session struct {
	cfg SessionConfig
	log *logrus.Entry
}

// NewSession creates a session for the given mailbox.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg: cfg,
		log: logging.Component("imap").WithFields(logrus.Fields{
			"server":   cfg.Address(),
			"username": cfg.Username,
		}),
	}
}

// FetchNewestUnread returns the raw bytes of the unread INBOX message with the
// highest sequence number. found is false when there are no unread messages.
//
// The mailbox is opened with EXAMINE and the body is fetched with
// BODY.PEEK[], so the message stays unread. The connection is closed before
// returning on every path, including when ctx is cancelled mid-command.
func (s *Session) FetchNewestUnread(ctx context.Context) (raw []byte, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	c, err := ConnectToIMAP(s.cfg.Address(), s.cfg.UseTLS, s.tlsConfig(), s.cfg.ConnectTimeout)
	if err != nil {
		return nil, false, wrapErr(ctx, ErrConnection, err)
	}
	c.Timeout = s.cfg.CommandTimeout

	stop := context.AfterFunc(ctx, func() {
		s.log.Warn("Context done, terminating IMAP connection")
		_ = c.Terminate()
	})
	defer func() {
		stop()
		s.disconnect(c)
	}()

	if err := Login(c, s.cfg.Username, s.cfg.Password); err != nil {
		return nil, false, wrapErr(ctx, ErrConnection, err)
	}

	if _, err := c.Select(inboxName, true); err != nil {
		return nil, false, wrapErr(ctx, ErrConnection, fmt.Errorf("failed to examine %s: %w", inboxName, err))
	}

	seqNums, err := SearchUnseen(c)
	if err != nil {
		return nil, false, wrapErr(ctx, ErrSearch, err)
	}

	if len(seqNums) == 0 {
		s.log.Debug("No unread messages in INBOX")
		return nil, false, nil
	}

	newest := NewestSeqNum(seqNums)
	s.log.WithFields(logrus.Fields{
		"unread":  len(seqNums),
		"seq_num": newest,
	}).Debug("Fetching newest unread message")

	raw, err = FetchRawMessage(c, newest)
	if err != nil {
		return nil, false, wrapErr(ctx, ErrFetch, err)
	}

	return raw, true, nil
}

func (s *Session) tlsConfig() *tls.Config {
	if s.cfg.InsecureSkipVerify {
		s.log.Warn("TLS certificate verification is disabled for this IMAP server")
	}
	return &tls.Config{
		ServerName: s.cfg.Host,
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // Opt-in via IMAP_TLS_INSECURE_SKIP_VERIFY for self-signed servers.
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
}

// disconnect logs out, falling back to closing the socket if LOGOUT fails.
func (s *Session) disconnect(c *client.Client) {
	if err := c.Logout(); err != nil {
		s.log.WithError(err).Debug("Logout failed, terminating connection")
		_ = c.Terminate()
	}
}

// wrapErr tags err with its failure category. If ctx is already done, the
// context error is wrapped too so callers can tell cancellation apart.
func wrapErr(ctx context.Context, category, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w: %v", category, ctxErr, err)
	}
	return fmt.Errorf("%w: %w", category, err)
}
