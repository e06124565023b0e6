package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vdavid/mailtrace/internal/db"
	"github.com/vdavid/mailtrace/internal/logging"
)

// RawReader loads the stored source of one record.
type RawReader interface {
	GetEmailRaw(ctx context.Context, id string) ([]byte, error)
}

// RawHandler serves the original message bytes of a stored record.
type RawHandler struct {
	reader RawReader
}

func NewRawHandler(reader RawReader) *RawHandler {
	return &RawHandler{reader: reader}
}

// Get writes the raw message for /api/v1/mail/raw/{id} as message/rfc822.
func (h *RawHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "Invalid email id", http.StatusBadRequest)
		return
	}

	raw, err := h.reader.GetEmailRaw(r.Context(), id)
	if errors.Is(err, db.ErrEmailNotFound) {
		http.Error(w, "Email not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Component("api").WithError(err).WithField("id", id).Error("RawHandler: failed to load raw email")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.eml"`)
	_, _ = w.Write(raw)
}
