package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/mailtrace/internal/models"
	"github.com/vdavid/mailtrace/internal/provenance"
	"github.com/vdavid/mailtrace/internal/testutil"
)

func newRecord(subject string, chain []string) *models.EmailRecord {
	return &models.EmailRecord{
		Subject:        subject,
		From:           "Alice <alice@gmail.com>",
		To:             "bob@example.com",
		Date:           time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Snippet:        "Hello Bob",
		ReceivingChain: chain,
		ESP:            models.ESPGmail,
		Hops:           len(chain),
		MessageID:      subject + "@example.com",
		Raw:            []byte("Subject: " + subject + "\r\n\r\nHello Bob\r\n"),
	}
}

func TestSaveAndGetEmail(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	chain := []string{
		"Received: from a.test by b.test; Fri, 1 Mar 2024 10:00:02 +0000",
		"Received: from c.test by a.test; Fri, 1 Mar 2024 10:00:01 +0000",
	}
	rec := newRecord("Hi", chain)

	err := SaveEmail(ctx, pool, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	records, err := GetRecentEmails(ctx, pool, HistoryLimit)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Hi", got.Subject)
	assert.Equal(t, "Alice <alice@gmail.com>", got.From)
	assert.Equal(t, "bob@example.com", got.To)
	assert.True(t, rec.Date.Equal(got.Date))
	assert.Equal(t, "Hello Bob", got.Snippet)
	assert.Equal(t, chain, got.ReceivingChain)
	assert.Equal(t, models.ESPGmail, got.ESP)
	assert.Equal(t, 2, got.Hops)
	assert.Equal(t, "Hi@example.com", got.MessageID)
	assert.Nil(t, got.Raw, "history does not load raw bytes")

	raw, err := GetEmailRaw(ctx, pool, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Raw, raw)
}

func TestSaveEmailEmptyChain(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	rec := newRecord("Local", nil)
	rec.ESP = models.ESPUnknown
	require.NoError(t, SaveEmail(ctx, pool, rec))
	assert.NotNil(t, rec.ReceivingChain)

	records, err := GetRecentEmails(ctx, pool, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{}, records[0].ReceivingChain)
	assert.Equal(t, 0, records[0].Hops)
}

func TestSaveEmailAcceptsEveryESPLabel(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	labels := provenance.KnownESPs()
	for _, label := range labels {
		rec := newRecord(string(label), nil)
		rec.ESP = label
		require.NoError(t, SaveEmail(ctx, pool, rec), "esp %q", label)
	}

	records, err := GetRecentEmails(ctx, pool, HistoryLimit)
	require.NoError(t, err)
	assert.Len(t, records, len(labels))
}

func TestSaveEmailRejectsHopMismatch(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	rec := newRecord("Broken", []string{"Received: from x by y"})
	rec.Hops = 3

	err := SaveEmail(context.Background(), pool, rec)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = SaveEmail(context.Background(), pool, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestGetRecentEmailsOrderAndLimit(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, SaveEmail(ctx, pool, newRecord(fmt.Sprintf("Message %d", i), nil)))
	}

	tests := []struct {
		name      string
		limit     int
		wantCount int
	}{
		{"default limit", 0, HistoryLimit},
		{"negative limit", -5, HistoryLimit},
		{"over max", 100, HistoryLimit},
		{"smaller limit", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := GetRecentEmails(ctx, pool, tt.limit)
			require.NoError(t, err)
			require.Len(t, records, tt.wantCount)

			assert.Equal(t, "Message 24", records[0].Subject)
			for i := 1; i < len(records); i++ {
				assert.False(t, records[i].CreatedAt.After(records[i-1].CreatedAt),
					"records must be ordered newest first")
			}
		})
	}
}

func TestGetRecentEmailsEmpty(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	records, err := GetRecentEmails(context.Background(), pool, HistoryLimit)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestEmailStore(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	store := NewEmailStore(pool)

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.SaveEmail(ctx, newRecord("Via store", nil)))

	records, err := store.GetRecentEmails(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Via store", records[0].Subject)

	raw, err := store.GetEmailRaw(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Via store")
}

func TestSaveEmailWithEightBitHeaders(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	chain := []string{"Received: from caf\xe9.example by mx.test; Fri, 1 Mar 2024 10:00:00 +0000"}
	rec := newRecord("Latin-1", chain)
	rec.Subject = "\xff\xfe"
	rec.From = "Ren\xe9 <rene@example.com>"
	rec.Snippet = "nul\x00byte"
	rec.Raw = []byte("Subject: \xff\xfe\r\n\r\nbody\r\n")

	require.NoError(t, SaveEmail(ctx, pool, rec))

	records, err := GetRecentEmails(ctx, pool, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "\uFFFD", got.Subject)
	assert.Equal(t, "Ren\uFFFD <rene@example.com>", got.From)
	assert.Equal(t, "nulbyte", got.Snippet)
	assert.Equal(t, []string{"Received: from caf\uFFFD.example by mx.test; Fri, 1 Mar 2024 10:00:00 +0000"}, got.ReceivingChain)

	raw, err := GetEmailRaw(ctx, pool, got.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Raw, raw, "raw bytes are stored unchanged")
}

func TestGetEmailRawNotFound(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	_, err := GetEmailRaw(context.Background(), pool, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}
