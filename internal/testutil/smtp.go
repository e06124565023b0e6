package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
)

// RelayHostname is the "by" host stamped into Received lines by the relay.
const RelayHostname = "relay.mailtrace.test"

// DeliverFunc hands a message (with the relay's Received line) to a mailbox.
type DeliverFunc func(raw []byte) error

// RelayBackend is an SMTP backend that stamps each message with a Received
// line and delivers it. It also keeps a copy of everything it delivered.
type RelayBackend struct {
	mu       sync.Mutex
	messages []*RelayedMessage
	deliver  DeliverFunc
	now      func() time.Time
}

// RelayedMessage is one message accepted by the relay.
type RelayedMessage struct {
	From string
	To   []string
	Data []byte
}

// NewRelayBackend creates a relay backend. A nil deliver only records.
func NewRelayBackend(deliver DeliverFunc) *RelayBackend {
	return &RelayBackend{
		messages: make([]*RelayedMessage, 0),
		deliver:  deliver,
		now:      time.Now,
	}
}

// NewSession creates a new SMTP session.
func (b *RelayBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	session := &relaySession{backend: b, helo: c.Hostname()}
	if conn := c.Conn(); conn != nil {
		if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
			session.remoteIP = host
		}
	}
	return session, nil
}

// GetMessages returns all relayed messages.
func (b *RelayBackend) GetMessages() []*RelayedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*RelayedMessage(nil), b.messages...)
}

// ClearMessages clears all stored messages.
func (b *RelayBackend) ClearMessages() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = make([]*RelayedMessage, 0)
}

type relaySession struct {
	backend  *RelayBackend
	helo     string
	remoteIP string
	from     string
	to       []string
}

func (s *relaySession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(s.receivedLine())
	buf.Write(data)
	stamped := buf.Bytes()

	if s.backend.deliver != nil {
		if err := s.backend.deliver(stamped); err != nil {
			return fmt.Errorf("failed to deliver message: %w", err)
		}
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &RelayedMessage{
		From: s.from,
		To:   s.to,
		Data: stamped,
	})

	return nil
}

// receivedLine follows the RFC 5321 trace format.
func (s *relaySession) receivedLine() string {
	helo := s.helo
	if helo == "" {
		helo = "unknown"
	}
	from := helo
	if s.remoteIP != "" {
		from = fmt.Sprintf("%s ([%s])", helo, s.remoteIP)
	}
	return fmt.Sprintf("Received: from %s\r\n\tby %s with ESMTP; %s\r\n",
		from, RelayHostname, s.backend.now().Format(time.RFC1123Z))
}

func (s *relaySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *relaySession) Logout() error {
	return nil
}

// TestSMTPServer is a relay SMTP server bound to a local port.
type TestSMTPServer struct {
	Server  *smtp.Server
	Address string
	Backend *RelayBackend
	cleanup func()
}

// StartSMTPRelay starts a relay on addr that hands messages to deliver.
func StartSMTPRelay(addr string, deliver DeliverFunc) (*TestSMTPServer, error) {
	be := NewRelayBackend(deliver)

	s := smtp.NewServer(be)
	s.Domain = RelayHostname
	s.AllowInsecureAuth = true
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.MaxMessageBytes = 10 << 20

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	return &TestSMTPServer{
		Server:  s,
		Address: listener.Addr().String(),
		Backend: be,
		cleanup: func() { _ = s.Close() },
	}, nil
}

// NewTestSMTPRelay starts a relay for the duration of the test that delivers
// into the INBOX of imapServer as unread mail.
func NewTestSMTPRelay(t *testing.T, imapServer *TestIMAPServer) *TestSMTPServer {
	t.Helper()

	var deliver DeliverFunc
	if imapServer != nil {
		deliver = func(raw []byte) error {
			return imapServer.AppendRaw(raw, nil)
		}
	}

	s, err := StartSMTPRelay("127.0.0.1:0", deliver)
	if err != nil {
		t.Fatalf("Failed to start SMTP relay: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

// Close shuts down the server.
func (s *TestSMTPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Send submits a message through the relay.
func (s *TestSMTPServer) Send(from string, to []string, raw []byte) error {
	return smtp.SendMail(s.Address, nil, from, to, bytes.NewReader(raw))
}

// GetMessages returns all messages relayed by the server.
func (s *TestSMTPServer) GetMessages() []*RelayedMessage {
	return s.Backend.GetMessages()
}

// ClearMessages clears all stored messages.
func (s *TestSMTPServer) ClearMessages() {
	s.Backend.ClearMessages()
}
