package testutil

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// TestIMAPServer is a plaintext IMAP server over the go-imap memory backend.
// The backend has one user, "username" / "password", with an INBOX.
type TestIMAPServer struct {
	Server   *server.Server
	Address  string
	Host     string
	Port     string
	Backend  *memory.Backend
	cleanup  func()
	username string
	password string
}

// StartIMAPServer starts a memory-backed IMAP server on addr ("127.0.0.1:0"
// picks a free port). Use NewTestIMAPServer inside tests.
func StartIMAPServer(addr string) (*TestIMAPServer, error) {
	be := memory.New()

	s := server.New(be)
	s.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	address := listener.Addr().String()
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to split listener address: %w", err)
	}

	return &TestIMAPServer{
		Server:   s,
		Address:  address,
		Host:     host,
		Port:     port,
		Backend:  be,
		cleanup:  func() { _ = s.Close() },
		username: "username",
		password: "password",
	}, nil
}

// NewTestIMAPServer starts a server for the duration of the test. Every
// message the backend seeds is marked \Seen, so the INBOX starts with no
// unread mail.
func NewTestIMAPServer(t *testing.T) *TestIMAPServer {
	t.Helper()

	s, err := StartIMAPServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start IMAP server: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.MarkAllSeen(); err != nil {
		t.Fatalf("Failed to mark seeded messages seen: %v", err)
	}

	return s
}

// Close shuts down the server.
func (s *TestIMAPServer) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Username returns the default test username.
func (s *TestIMAPServer) Username() string {
	return s.username
}

// Password returns the default test password.
func (s *TestIMAPServer) Password() string {
	return s.password
}

func (s *TestIMAPServer) dial() (*imapclient.Client, error) {
	c, err := imapclient.Dial(s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test server: %w", err)
	}
	c.Timeout = 10 * time.Second

	if err := c.Login(s.username, s.password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// Connect opens a logged-in client connection.
func (s *TestIMAPServer) Connect(t *testing.T) (*imapclient.Client, func()) {
	t.Helper()

	c, err := s.dial()
	if err != nil {
		t.Fatal(err)
	}

	return c, func() { _ = c.Logout() }
}

// AppendRaw appends a raw message to INBOX with the given flags. A nil flag
// list leaves the message unread.
func (s *TestIMAPServer) AppendRaw(raw []byte, flags []string) error {
	c, err := s.dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	if flags == nil {
		flags = []string{}
	}
	if err := c.Append("INBOX", flags, time.Now(), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// AddRawMessage appends a raw message to INBOX and fails the test on error.
func (s *TestIMAPServer) AddRawMessage(t *testing.T, raw string, flags ...string) {
	t.Helper()

	if err := s.AppendRaw([]byte(raw), flags); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}
}

// MarkAllSeen sets \Seen on every message in INBOX.
func (s *TestIMAPServer) MarkAllSeen() error {
	c, err := s.dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}
	if mbox.Messages == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, mbox.Messages)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to store flags: %w", err)
	}
	return nil
}

// UnseenCount returns how many INBOX messages lack \Seen.
func (s *TestIMAPServer) UnseenCount(t *testing.T) int {
	t.Helper()

	c, cleanup := s.Connect(t)
	defer cleanup()

	if _, err := c.Select("INBOX", true); err != nil {
		t.Fatalf("Failed to examine INBOX: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		t.Fatalf("Failed to search INBOX: %v", err)
	}
	return len(seqNums)
}

// BuildMessage returns a minimal RFC 5322 message with CRLF line endings.
// A non-empty received becomes the first header; extra header lines follow it.
func BuildMessage(subject, from, received string, extra ...string) string {
	var buf bytes.Buffer
	if received != "" {
		buf.WriteString("Received: " + received + "\r\n")
	}
	for _, h := range extra {
		buf.WriteString(h + "\r\n")
	}
	buf.WriteString("From: " + from + "\r\n")
	buf.WriteString("To: inbox@example.com\r\n")
	buf.WriteString("Subject: " + subject + "\r\n")
	buf.WriteString("Date: Fri, 01 Mar 2024 10:00:00 +0000\r\n")
	buf.WriteString("Message-ID: <" + subject + "@example.com>\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString("Body of " + subject + "\r\n")
	return buf.String()
}
