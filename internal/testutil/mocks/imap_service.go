package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vdavid/mailtrace/internal/models"
)

// IMAPService is a mock of imap.IMAPService.
type IMAPService struct {
	mock.Mock
}

func (m *IMAPService) IngestLatestUnread(ctx context.Context) (*models.EmailRecord, error) {
	args := m.Called(ctx)
	var rec *models.EmailRecord
	if v := args.Get(0); v != nil {
		rec = v.(*models.EmailRecord)
	}
	return rec, args.Error(1)
}

// NewIMAPService creates an IMAPService mock whose expectations are asserted on cleanup.
func NewIMAPService(t interface {
	mock.TestingT
	Cleanup(func())
}) *IMAPService {
	m := &IMAPService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
