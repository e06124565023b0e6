package imap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vdavid/mailtrace/internal/logging"
	"github.com/vdavid/mailtrace/internal/models"
	"github.com/vdavid/mailtrace/internal/provenance"
)

// Mailbox fetches the newest unread message. *Session implements it.
type Mailbox interface {
	FetchNewestUnread(ctx context.Context) (raw []byte, found bool, err error)
}

// RecordStore persists ingested records. SaveEmail must fill in ID and CreatedAt.
type RecordStore interface {
	SaveEmail(ctx context.Context, record *models.EmailRecord) error
}

// EventPublisher is notified after a record has been stored.
type EventPublisher interface {
	PublishEmail(record *models.EmailRecord)
}

// Service runs the fetch, parse, analyze, persist pipeline.
type Service struct {
	openMailbox func() Mailbox
	store       RecordStore
	events      EventPublisher
	now         func() time.Time
}

// NewService creates a Service that opens a fresh IMAP session per ingestion.
// events may be nil.
func NewService(cfg SessionConfig, store RecordStore, events EventPublisher) *Service {
	return NewServiceWithMailbox(func() Mailbox { return NewSession(cfg) }, store, events)
}

// NewServiceWithMailbox creates a Service with a custom mailbox factory.
// openMailbox is called once per ingestion.
func NewServiceWithMailbox(openMailbox func() Mailbox, store RecordStore, events EventPublisher) *Service {
	return &Service{
		openMailbox: openMailbox,
		store:       store,
		events:      events,
		now:         time.Now,
	}
}

// IngestLatestUnread fetches the newest unread message, analyzes it and stores
// the result. It returns (nil, nil) when the mailbox has no unread message;
// the store is not touched in that case. Nothing is stored if any step fails.
//
// Records are not deduplicated: calling this twice while the same message is
// still unread stores it twice.
func (s *Service) IngestLatestUnread(ctx context.Context) (*models.EmailRecord, error) {
	log := logging.Component("ingest").WithField("trace_id", uuid.NewString())
	ingestedAt := s.now()

	raw, found, err := s.openMailbox().FetchNewestUnread(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch newest unread message")
		return nil, err
	}

	if !found {
		log.Info("No unread message found")
		return nil, nil
	}

	record, err := AnalyzeMessage(raw, ingestedAt)
	if err != nil {
		log.WithError(err).WithField("bytes", len(raw)).Error("Failed to parse message")
		return nil, err
	}

	if err := s.store.SaveEmail(ctx, record); err != nil {
		log.WithError(err).Error("Failed to save email record")
		return nil, fmt.Errorf("failed to save email record: %w", err)
	}

	log.WithFields(logrus.Fields{
		"id":      record.ID,
		"subject": record.Subject,
		"esp":     record.ESP,
		"hops":    record.Hops,
	}).Info("Email saved")

	if s.events != nil {
		s.events.PublishEmail(record)
	}

	return record, nil
}

// AnalyzeMessage parses raw and builds an unsaved record from it. fallbackDate
// is used when the message has no usable Date header.
func AnalyzeMessage(raw []byte, fallbackDate time.Time) (*models.EmailRecord, error) {
	parsed, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return BuildRecord(parsed, raw, fallbackDate), nil
}

// BuildRecord assembles a record from a parsed message. Text fields are
// cleaned of invalid UTF-8 and NUL bytes; the ESP is classified on the
// decoded From before cleaning.
func BuildRecord(parsed *ParsedMessage, raw []byte, fallbackDate time.Time) *models.EmailRecord {
	chain := provenance.ExtractChain(parsed.Headers)

	date := parsed.Date
	if !parsed.HasDate {
		date = fallbackDate
	}

	rec := &models.EmailRecord{
		Subject:        parsed.Subject,
		From:           parsed.From,
		To:             parsed.To,
		Date:           date,
		Snippet:        Snippet(models.CleanText(parsed.Text)),
		ReceivingChain: chain,
		ESP:            provenance.ClassifyESP(parsed.From),
		Hops:           len(chain),
		MessageID:      parsed.MessageID,
		Raw:            raw,
	}
	rec.Sanitize()
	return rec
}
