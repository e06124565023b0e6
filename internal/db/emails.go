package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailtrace/internal/models"
)

// HistoryLimit is the default and maximum number of records returned by
// GetRecentEmails.
const HistoryLimit = 20

var (
	// ErrInvalidRecord is returned when a record would break a stored invariant.
	ErrInvalidRecord = errors.New("invalid email record")
	// ErrEmailNotFound is returned when no record has the requested ID.
	ErrEmailNotFound = errors.New("email not found")
)

// SaveEmail inserts a new record. The database assigns ID and CreatedAt,
// which are written back to rec. Text fields are cleaned with rec.Sanitize
// first so 8-bit header bytes cannot fail the insert.
func SaveEmail(ctx context.Context, pool *pgxpool.Pool, rec *models.EmailRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	rec.Sanitize()

	chain := rec.ReceivingChain
	if chain == nil {
		chain = []string{}
	}
	if rec.Hops != len(chain) {
		return fmt.Errorf("%w: hops is %d but chain has %d lines", ErrInvalidRecord, rec.Hops, len(chain))
	}
	raw := rec.Raw
	if raw == nil {
		raw = []byte{}
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO emails (
			subject,
			from_text,
			to_text,
			sent_at,
			snippet,
			receiving_chain,
			esp,
			hops,
			message_id_header,
			raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		rec.Subject,
		rec.From,
		rec.To,
		rec.Date,
		rec.Snippet,
		chain,
		string(rec.ESP),
		rec.Hops,
		rec.MessageID,
		raw,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}

	rec.ReceivingChain = chain
	return nil
}

// GetRecentEmails returns up to limit records, newest by CreatedAt first.
// A limit outside 1..HistoryLimit is treated as HistoryLimit. Raw is not loaded.
func GetRecentEmails(ctx context.Context, pool *pgxpool.Pool, limit int) ([]*models.EmailRecord, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	rows, err := pool.Query(ctx, `
		SELECT
			id,
			subject,
			from_text,
			to_text,
			sent_at,
			snippet,
			receiving_chain,
			esp,
			hops,
			message_id_header,
			created_at
		FROM emails
		ORDER BY created_at DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get emails: %w", err)
	}
	defer rows.Close()

	records := make([]*models.EmailRecord, 0, limit)
	for rows.Next() {
		var rec models.EmailRecord
		var esp string
		if err := rows.Scan(
			&rec.ID,
			&rec.Subject,
			&rec.From,
			&rec.To,
			&rec.Date,
			&rec.Snippet,
			&rec.ReceivingChain,
			&esp,
			&rec.Hops,
			&rec.MessageID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		rec.ESP = models.ESP(esp)
		if rec.ReceivingChain == nil {
			rec.ReceivingChain = []string{}
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return records, nil
}

// GetEmailRaw returns the stored raw message for a record ID.
func GetEmailRaw(ctx context.Context, pool *pgxpool.Pool, id string) ([]byte, error) {
	var raw []byte
	err := pool.QueryRow(ctx, `SELECT raw FROM emails WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw email: %w", err)
	}
	return raw, nil
}
