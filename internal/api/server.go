package api

import (
	"net/http"

	"github.com/vdavid/mailtrace/internal/config"
	"github.com/vdavid/mailtrace/internal/db"
	"github.com/vdavid/mailtrace/internal/imap"
	ws "github.com/vdavid/mailtrace/internal/websocket"
)

// maxWebSocketClients caps concurrent event subscribers.
const maxWebSocketClients = 50

// SessionConfigFromConfig builds the production mailbox settings. Implicit
// TLS is always on.
func SessionConfigFromConfig(cfg *config.Config) imap.SessionConfig {
	return imap.SessionConfig{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUsername,
		Password:           cfg.IMAPPassword,
		UseTLS:             true,
		InsecureSkipVerify: cfg.IMAPInsecureSkipVerify,
		ConnectTimeout:     cfg.IMAPConnectTimeout,
		CommandTimeout:     cfg.IMAPCommandTimeout,
	}
}

// NewServer wires the ingestion service, the event hub and the handlers
// into one HTTP handler.
func NewServer(cfg *config.Config, store *db.EmailStore, session imap.SessionConfig) http.Handler {
	hub := ws.NewHub(maxWebSocketClients)
	service := imap.NewService(session, store, hub)

	mail := NewMailHandler(service, store, store, cfg.IMAPUsername, cfg.IMAPIngestTimeout)
	wsHandler := NewWebSocketHandler(hub, cfg.CORSOrigin)

	return NewRouter(mail, NewRawHandler(store), wsHandler, cfg.CORSOrigin)
}
