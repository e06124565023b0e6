package imap

import (
	"context"

	"github.com/vdavid/mailtrace/internal/models"
)

// IMAPService defines the interface for mailbox ingestion.
// This interface allows handlers to be tested with mock implementations.
// Note: The stutter in the naming is intentional because we have a struct called Service.
//
//goland:noinspection GoNameStartsWithPackageName
type IMAPService interface {
	// IngestLatestUnread fetches, analyzes and stores the newest unread message.
	// Returns (nil, nil) when there is no unread message.
	IngestLatestUnread(ctx context.Context) (*models.EmailRecord, error)
}

// Ensure Service implements IMAPService interface
var _ IMAPService = (*Service)(nil)

// Ensure Session implements Mailbox interface
var _ Mailbox = (*Session)(nil)
