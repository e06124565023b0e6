package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vdavid/mailtrace/internal/logging"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string
	CORSOrigin  string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	IMAPHost     string
	IMAPPort     string
	IMAPUsername string
	IMAPPassword string
	// IMAPInsecureSkipVerify disables TLS certificate verification for the
	// IMAP connection. Only for servers with self-signed certificates.
	IMAPInsecureSkipVerify bool
	IMAPConnectTimeout     time.Duration
	IMAPCommandTimeout     time.Duration
	IMAPIngestTimeout      time.Duration
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILTRACE_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			logging.Log.Warn("config: .env file not found, using environment variables")
		}
	}

	insecure, err := getBoolOrDefault("IMAP_TLS_INSECURE_SKIP_VERIFY", false)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := getDurationOrDefault("IMAP_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	commandTimeout, err := getDurationOrDefault("IMAP_COMMAND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	ingestTimeout, err := getDurationOrDefault("IMAP_INGEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment: env,
		Port:        getEnvOrDefault("PORT", "3000"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigin:  getEnvOrDefault("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),

		DBHost:     getEnvOrDefault("MAILTRACE_DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("MAILTRACE_DB_PORT", "5432"),
		DBUsername: getEnvOrDefault("MAILTRACE_DB_USER", "mailtrace"),
		DBPassword: os.Getenv("MAILTRACE_DB_PASSWORD"),
		DBName:     getEnvOrDefault("MAILTRACE_DB_NAME", "mailtrace"),
		DBSSLMode:  getEnvOrDefault("MAILTRACE_DB_SSLMODE", "disable"),

		IMAPHost:               os.Getenv("IMAP_HOST"),
		IMAPPort:               getEnvOrDefault("IMAP_PORT", "993"),
		IMAPUsername:           os.Getenv("EMAIL_USER"),
		IMAPPassword:           os.Getenv("EMAIL_PASS"),
		IMAPInsecureSkipVerify: insecure,
		IMAPConnectTimeout:     connectTimeout,
		IMAPCommandTimeout:     commandTimeout,
		IMAPIngestTimeout:      ingestTimeout,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("MAILTRACE_DB_PASSWORD is required")
	}

	if c.IMAPHost == "" {
		return fmt.Errorf("IMAP_HOST is required")
	}

	if c.IMAPUsername == "" {
		return fmt.Errorf("EMAIL_USER is required")
	}

	if c.IMAPPassword == "" {
		return fmt.Errorf("EMAIL_PASS is required")
	}

	if err := validatePort("IMAP_PORT", c.IMAPPort); err != nil {
		return err
	}

	if err := validatePort("MAILTRACE_DB_PORT", c.DBPort); err != nil {
		return err
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// IMAPAddress returns the host:port of the IMAP server.
func (c *Config) IMAPAddress() string {
	return net.JoinHostPort(c.IMAPHost, c.IMAPPort)
}

func validatePort(name, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be a number, got %q", name, value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return parsed, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s, got %q", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, value)
	}
	return parsed, nil
}
