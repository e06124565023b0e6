package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vdavid/mailtrace/internal/models"
)

// EventPublisher is a mock of imap.EventPublisher.
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) PublishEmail(rec *models.EmailRecord) {
	m.Called(rec)
}

// NewEventPublisher creates an EventPublisher mock whose expectations are asserted on cleanup.
func NewEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *EventPublisher {
	m := &EventPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
