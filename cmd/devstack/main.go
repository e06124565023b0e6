// Command devstack runs the whole pipeline locally: a Postgres container, an
// in-memory IMAP server, an SMTP relay that delivers into it, and the API.
// Mail sent to the relay shows up as unread in the IMAP INBOX.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vdavid/mailtrace/internal/api"
	"github.com/vdavid/mailtrace/internal/config"
	"github.com/vdavid/mailtrace/internal/db"
	"github.com/vdavid/mailtrace/internal/imap"
	"github.com/vdavid/mailtrace/internal/logging"
	"github.com/vdavid/mailtrace/internal/testutil"
	"github.com/vdavid/mailtrace/migrations"
)

type options struct {
	port       string
	imapAddr   string
	smtpAddr   string
	corsOrigin string
	seed       bool
}

func main() {
	opts := parseFlags()
	log := logging.Component("devstack")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting Postgres container...")
	container, connStr, err := testutil.StartPostgres(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to start Postgres")
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to terminate Postgres container")
		}
	}()

	pool, err := openPool(ctx, connStr)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up database")
	}
	defer pool.Close()

	imapServer, err := testutil.StartIMAPServer(opts.imapAddr)
	if err != nil {
		log.WithError(err).Fatal("Failed to start IMAP server")
	}
	defer imapServer.Close()
	if err := imapServer.MarkAllSeen(); err != nil {
		log.WithError(err).Fatal("Failed to prepare INBOX")
	}

	relay, err := testutil.StartSMTPRelay(opts.smtpAddr, func(raw []byte) error {
		return imapServer.AppendRaw(raw, nil)
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to start SMTP relay")
	}
	defer relay.Close()

	if opts.seed {
		if err := sendSample(relay); err != nil {
			log.WithError(err).Fatal("Failed to send sample message")
		}
		log.Info("Sent a sample message through the relay")
	}

	cfg := &config.Config{
		Environment:       "development",
		Port:              opts.port,
		CORSOrigin:        opts.corsOrigin,
		IMAPHost:          imapServer.Host,
		IMAPPort:          imapServer.Port,
		IMAPUsername:      imapServer.Username(),
		IMAPPassword:      imapServer.Password(),
		IMAPIngestTimeout: 30 * time.Second,
	}
	session := imap.SessionConfig{
		Host:           imapServer.Host,
		Port:           imapServer.Port,
		Username:       imapServer.Username(),
		Password:       imapServer.Password(),
		UseTLS:         false,
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 10 * time.Second,
	}

	server := &http.Server{
		Addr:              ":" + opts.port,
		Handler:           api.NewServer(cfg, db.NewEmailStore(pool), session),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("imap", imapServer.Address).Infof("IMAP user %q, password %q", imapServer.Username(), imapServer.Password())
	log.WithField("smtp", relay.Address).Info("SMTP relay accepting mail for the INBOX")
	log.Infof("API listening on :%s. Press Ctrl+C to stop.", opts.port)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.WithError(err).Error("Server error")
	case <-ctx.Done():
		log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.port, "port", "3000", "HTTP port for the API")
	flag.StringVar(&opts.imapAddr, "imap", "127.0.0.1:1143", "listen address of the IMAP server")
	flag.StringVar(&opts.smtpAddr, "smtp", "127.0.0.1:2525", "listen address of the SMTP relay")
	flag.StringVar(&opts.corsOrigin, "cors-origin", "http://localhost:5173", "allowed browser origin")
	flag.BoolVar(&opts.seed, "seed", false, "send one sample message through the relay on startup")
	flag.Parse()
	return opts
}

func openPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	db.ConfigurePool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := migrations.Run(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// sampleMessage already carries one upstream hop; the relay adds the second.
func sampleMessage(now time.Time) []byte {
	return []byte(fmt.Sprintf("Received: from mail-sor-f41.google.com ([209.85.220.41])\r\n"+
		"\tby mx.google.com with SMTPS; %s\r\n"+
		"From: Dev Sender <dev.sender@gmail.com>\r\n"+
		"To: inbox@mailtrace.test\r\n"+
		"Subject: Lucid Test Email 1\r\n"+
		"Date: %s\r\n"+
		"Message-ID: <devstack-%d@gmail.com>\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"Sample message sent by devstack.\r\n",
		now.Format(time.RFC1123Z), now.Format(time.RFC1123Z), now.UnixNano()))
}

func sendSample(relay *testutil.TestSMTPServer) error {
	return relay.Send("dev.sender@gmail.com", []string{"inbox@mailtrace.test"}, sampleMessage(time.Now()))
}
