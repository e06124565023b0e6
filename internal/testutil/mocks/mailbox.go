package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Mailbox is a mock of imap.Mailbox.
type Mailbox struct {
	mock.Mock
}

func (m *Mailbox) FetchNewestUnread(ctx context.Context) ([]byte, bool, error) {
	args := m.Called(ctx)
	var raw []byte
	if v := args.Get(0); v != nil {
		raw = v.([]byte)
	}
	return raw, args.Bool(1), args.Error(2)
}

// NewMailbox creates a Mailbox mock whose expectations are asserted on cleanup.
func NewMailbox(t interface {
	mock.TestingT
	Cleanup(func())
}) *Mailbox {
	m := &Mailbox{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
