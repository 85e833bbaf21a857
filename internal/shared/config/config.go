package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Encryption EncryptionConfig
	LND        LNDConfig
	Poller     PollerConfig
	Accounts   AccountsConfig
	Payments   PaymentsConfig
	Webhooks   WebhooksConfig
	Firebase   FirebaseConfig
	TLS        TLSConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	AllowedHosts    []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the key clients send in X-API-Key.
	APIKeyHash string
}

type EncryptionConfig struct {
	Key string
}

type LNDConfig struct {
	RESTURL      string
	MacaroonHex  string
	MacaroonPath string
	TLSCertPath  string
	Timeout      time.Duration
}

type PollerConfig struct {
	Enabled      bool
	Interval     time.Duration
	InvoiceLimit int
	WorkerCount  int
	QueueSize    int
	RunOnStartup bool
}

type AccountsConfig struct {
	MemoPattern        string
	DefaultAccountName string
}

type PaymentsConfig struct {
	InvoiceExpiry int64
}

type WebhooksConfig struct {
	Timeout time.Duration
}

type FirebaseConfig struct {
	CredentialsFile string
	AlertTopic      string
	// MessagesFile optionally overrides the alert texts (JSON).
	MessagesFile string
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

// Load reads the environment (after applying .env when present) and
// validates everything the API server needs.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without checking required fields. Admin
// commands use it so that e.g. migrate only needs database settings.
func Parse() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getIntEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durationEnv := func(key string, def time.Duration) time.Duration {
		v, err := getDurationEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			AllowedHosts:    splitList(getEnv("ALLOWED_HOSTS", "")),
			ShutdownTimeout: durationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     intEnv("DB_PORT", 5432),
			User:     getEnv("DB_USER", "shadowledger"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "shadowledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			APIKeyHash: getEnv("API_KEY_HASH", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		LND: LNDConfig{
			RESTURL:      getEnv("LND_REST_URL", "https://localhost:8080"),
			MacaroonHex:  getEnv("LND_MACAROON_HEX", ""),
			MacaroonPath: getEnv("LND_MACAROON_PATH", ""),
			TLSCertPath:  getEnv("LND_TLS_CERT_PATH", ""),
			Timeout:      durationEnv("LND_TIMEOUT", 30*time.Second),
		},
		Poller: PollerConfig{
			Enabled:      getBoolEnv("POLL_ENABLED", true),
			Interval:     durationEnv("POLL_INTERVAL", 10*time.Second),
			InvoiceLimit: intEnv("POLL_INVOICE_LIMIT", 100),
			WorkerCount:  intEnv("POLL_WORKERS", 2),
			QueueSize:    intEnv("POLL_QUEUE_SIZE", 4),
			RunOnStartup: getBoolEnv("POLL_RUN_ON_STARTUP", true),
		},
		Accounts: AccountsConfig{
			MemoPattern:        getEnv("ACCOUNT_MEMO_PATTERN", ""),
			DefaultAccountName: getEnv("DEFAULT_ACCOUNT_NAME", "default"),
		},
		Payments: PaymentsConfig{
			InvoiceExpiry: int64(intEnv("INVOICE_EXPIRY", 3600)),
		},
		Webhooks: WebhooksConfig{
			Timeout: durationEnv("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			AlertTopic:      getEnv("FIREBASE_ALERT_TOPIC", "shadowledger-alerts"),
			MessagesFile:    getEnv("FIREBASE_MESSAGES_FILE", ""),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "shadowledger-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings required to run the API server.
func (c *Config) Validate() error {
	if c.Auth.APIKeyHash == "" {
		return fmt.Errorf("API_KEY_HASH is required")
	}
	if _, err := bcrypt.Cost([]byte(c.Auth.APIKeyHash)); err != nil {
		return fmt.Errorf("API_KEY_HASH must be a bcrypt hash: %w", err)
	}

	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if err := c.LND.Validate(); err != nil {
		return err
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Poller.InvoiceLimit <= 0 {
		return fmt.Errorf("POLL_INVOICE_LIMIT must be positive")
	}
	if c.Poller.WorkerCount <= 0 {
		return fmt.Errorf("POLL_WORKERS must be positive")
	}
	if c.Poller.QueueSize < 0 {
		return fmt.Errorf("POLL_QUEUE_SIZE must not be negative")
	}

	if c.Accounts.MemoPattern != "" {
		re, err := regexp.Compile(c.Accounts.MemoPattern)
		if err != nil {
			return fmt.Errorf("invalid ACCOUNT_MEMO_PATTERN: %w", err)
		}
		if re.NumSubexp() != 1 {
			return fmt.Errorf("ACCOUNT_MEMO_PATTERN must have exactly one capture group")
		}
	}
	if strings.TrimSpace(c.Accounts.DefaultAccountName) == "" {
		return fmt.Errorf("DEFAULT_ACCOUNT_NAME must not be empty")
	}

	if c.Payments.InvoiceExpiry <= 0 {
		return fmt.Errorf("INVOICE_EXPIRY must be positive")
	}
	if c.Webhooks.Timeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return nil
}

// Validate checks the node connection settings.
func (c *LNDConfig) Validate() error {
	if c.RESTURL == "" {
		return fmt.Errorf("LND_REST_URL is required")
	}
	if c.MacaroonHex == "" && c.MacaroonPath == "" {
		return fmt.Errorf("LND_MACAROON_HEX or LND_MACAROON_PATH is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("LND_TIMEOUT must be positive")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// loadDotEnv applies path to the process environment. Variables already set
// win over the file; a missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
