package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/vdavid/mailtrace/internal/db"
	"github.com/vdavid/mailtrace/internal/imap"
	"github.com/vdavid/mailtrace/internal/logging"
	"github.com/vdavid/mailtrace/internal/models"
)

// NoMessageText is returned alongside a null email when the mailbox has no unread message.
const NoMessageText = "No matching unread email found. Send a new test email and keep it unread."

// HistoryReader lists stored records, newest first.
type HistoryReader interface {
	GetRecentEmails(ctx context.Context, limit int) ([]*models.EmailRecord, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MailHandler serves the /api/v1/mail endpoints.
type MailHandler struct {
	ingester      imap.IMAPService
	history       HistoryReader
	pinger        Pinger
	testAddress   string
	ingestTimeout time.Duration
	now           func() time.Time
	randN         func(n int) int
}

// NewMailHandler creates a new MailHandler instance. testAddress is the
// mailbox users should send test mail to. pinger may be nil.
func NewMailHandler(ingester imap.IMAPService, history HistoryReader, pinger Pinger, testAddress string, ingestTimeout time.Duration) *MailHandler {
	return &MailHandler{
		ingester:      ingester,
		history:       history,
		pinger:        pinger,
		testAddress:   testAddress,
		ingestTimeout: ingestTimeout,
		now:           time.Now,
		randN:         rand.IntN,
	}
}

type latestResponse struct {
	Email   *models.EmailRecord `json:"email"`
	Message string              `json:"message"`
}

type metaResponse struct {
	TestAddress    string `json:"testAddress"`
	ExampleSubject string `json:"exampleSubject"`
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Time    string `json:"time"`
}

// Latest ingests the newest unread message and returns the stored record.
func (h *MailHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ingestTimeout)
		defer cancel()
	}

	record, err := h.ingester.IngestLatestUnread(ctx)
	if err != nil {
		status, message := ingestErrorResponse(err)
		logging.Component("api").WithError(err).WithField("status", status).Error("MailHandler: ingestion failed")
		http.Error(w, message, status)
		return
	}

	if record == nil {
		WriteJSONResponse(w, latestResponse{Email: nil, Message: NoMessageText})
		return
	}

	WriteJSONResponse(w, record)
}

// ingestErrorResponse maps an ingestion error to a status code and a short
// message. Deadlines and cancellation are retryable and map to 503.
func ingestErrorResponse(err error) (int, string) {
	switch {
	case imap.IsTimeout(err) || errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Connection to the mail server timed out. Please try again."
	case errors.Is(err, imap.ErrConnection):
		return http.StatusInternalServerError, "Failed to connect to the mail server"
	case errors.Is(err, imap.ErrSearch):
		return http.StatusInternalServerError, "Failed to search the mailbox"
	case errors.Is(err, imap.ErrFetch):
		return http.StatusInternalServerError, "Failed to fetch the message"
	case errors.Is(err, imap.ErrParse):
		return http.StatusInternalServerError, "Failed to parse the message"
	default:
		return http.StatusInternalServerError, "Failed to save the email"
	}
}

// History returns the most recent records, newest first.
func (h *MailHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := ParseLimitParam(r, db.HistoryLimit)
	if limit > db.HistoryLimit {
		limit = db.HistoryLimit
	}

	records, err := h.history.GetRecentEmails(r.Context(), limit)
	if err != nil {
		logging.Component("api").WithError(err).Error("MailHandler: failed to get history")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.EmailRecord{}
	}

	WriteJSONResponse(w, records)
}

// Meta returns the address to send test mail to and a suggested subject.
func (h *MailHandler) Meta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	WriteJSONResponse(w, metaResponse{
		TestAddress:    h.testAddress,
		ExampleSubject: fmt.Sprintf("Lucid Test Email %d", h.randN(100000)),
	})
}

// Health reports liveness. With a pinger it also checks the database.
func (h *MailHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:      true,
		Service: "mail",
		Time:    h.now().UTC().Format(time.RFC3339),
	}

	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			logging.Component("api").WithError(err).Warn("MailHandler: health check failed")
			resp.OK = false
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	WriteJSONResponse(w, resp)
}
