package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vdavid/mailtrace/internal/models"
)

// RecordStore is a mock of the email record store, covering both the
// write side used by ingestion and the history and raw read sides.
type RecordStore struct {
	mock.Mock
}

func (m *RecordStore) SaveEmail(ctx context.Context, rec *models.EmailRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecordStore) GetRecentEmails(ctx context.Context, limit int) ([]*models.EmailRecord, error) {
	args := m.Called(ctx, limit)
	var records []*models.EmailRecord
	if v := args.Get(0); v != nil {
		records = v.([]*models.EmailRecord)
	}
	return records, args.Error(1)
}

func (m *RecordStore) GetEmailRaw(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	var raw []byte
	if v := args.Get(0); v != nil {
		raw = v.([]byte)
	}
	return raw, args.Error(1)
}

func (m *RecordStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// NewRecordStore creates a RecordStore mock whose expectations are asserted on cleanup.
func NewRecordStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *RecordStore {
	m := &RecordStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
