package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailtrace/internal/models"
)

// EmailStore binds the email queries to a pool.
type EmailStore struct {
	pool *pgxpool.Pool
}

func NewEmailStore(pool *pgxpool.Pool) *EmailStore {
	return &EmailStore{pool: pool}
}

func (s *EmailStore) SaveEmail(ctx context.Context, rec *models.EmailRecord) error {
	return SaveEmail(ctx, s.pool, rec)
}

func (s *EmailStore) GetRecentEmails(ctx context.Context, limit int) ([]*models.EmailRecord, error) {
	return GetRecentEmails(ctx, s.pool, limit)
}

// GetEmailRaw returns the stored message bytes for id.
func (s *EmailStore) GetEmailRaw(ctx context.Context, id string) ([]byte, error) {
	return GetEmailRaw(ctx, s.pool, id)
}

// Ping reports whether the database is reachable.
func (s *EmailStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
