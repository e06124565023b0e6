package api

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
)

// NewRouter mounts every endpoint and wraps the mux in CORS for origin.
// raw and wsHandler may be nil.
func NewRouter(mail *MailHandler, raw *RawHandler, wsHandler *WebSocketHandler, origin string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/api/v1/mail/latest", mail.Latest)
	mux.HandleFunc("/api/v1/mail/history", mail.History)
	mux.HandleFunc("/api/v1/mail/meta", mail.Meta)
	mux.HandleFunc("/api/v1/mail/health", mail.Health)
	if raw != nil {
		mux.HandleFunc("/api/v1/mail/raw/{id}", raw.Get)
	}
	if wsHandler != nil {
		mux.HandleFunc("/api/v1/ws", wsHandler.Handle)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(mux)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "mailtrace API is running")
}
