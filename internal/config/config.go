package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

const (
	AuthModeToken     = "token"
	AuthModeDelegated = "delegated"

	BlobBackendS3    = "s3"
	BlobBackendMinio = "minio"

	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// DatabaseOptions selects and locates the relational store
type DatabaseOptions struct {
	URL            string        `env:"DATABASE_URL"`
	SecretARN      string        `env:"DATABASE_SECRET_ARN"`
	Driver         string        `env:"DB_DRIVER" envDefault:"pgx"`
	Host           string        `env:"DB_HOST" envDefault:"localhost"`
	Port           int           `env:"DB_PORT" envDefault:"5432"`
	User           string        `env:"DB_USER" envDefault:"postgres"`
	Password       string        `env:"DB_PASSWORD"`
	Name           string        `env:"DB_NAME" envDefault:"service_requests"`
	SSLMode        string        `env:"DB_SSLMODE" envDefault:"prefer"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxRetries     int           `env:"DB_MAX_RETRIES" envDefault:"5"`
}

// DSN returns DATABASE_URL when set, otherwise a URL composed from the DB_* parts.
func (d DatabaseOptions) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("connect_timeout", fmt.Sprintf("%d", int(d.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// AuthOptions configures identity resolution
type AuthOptions struct {
	Mode                 string        `env:"AUTH_MODE" envDefault:"token"`
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTExpirationMinutes int           `env:"JWT_EXPIRATION_MINUTES" envDefault:"480"`
	DemoAuth             bool          `env:"DEMO_AUTH" envDefault:"false"`
	AdminEmails          []string      `env:"ADMIN_EMAILS" envSeparator:","`
	UserInfoURL          string        `env:"IDP_USERINFO_URL" envDefault:"https://graph.microsoft.com/v1.0/me"`
	IDPTimeout           time.Duration `env:"IDP_TIMEOUT" envDefault:"10s"`
}

// PolicyOptions toggles the deployment-dependent scoping variants
type PolicyOptions struct {
	AdminTerritoryScoped    bool `env:"ADMIN_TERRITORY_SCOPED" envDefault:"false"`
	CustomerTerritoryScoped bool `env:"CUSTOMER_TERRITORY_SCOPED" envDefault:"false"`
}

// BlobOptions selects the attachment blob backend
type BlobOptions struct {
	Backend        string `env:"BLOB_BACKEND" envDefault:"s3"`
	Bucket         string `env:"BLOB_BUCKET"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"true"`
	MinioRegion    string `env:"MINIO_REGION" envDefault:"us-east-1"`
}

// NotifyOptions toggles outbound notifications
type NotifyOptions struct {
	EmailEnabled bool   `env:"NOTIFY_EMAIL_ENABLED" envDefault:"false"`
	SMSEnabled   bool   `env:"NOTIFY_SMS_ENABLED" envDefault:"false"`
	FromEmail    string `env:"SES_FROM_EMAIL"`
	ReplyTo      string `env:"SES_REPLY_TO"`
}

// Config is the full process configuration
type Config struct {
	Port               string   `env:"PORT" envDefault:"8080"`
	GinMode            string   `env:"GIN_MODE"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	AWSRegion          string   `env:"AWS_REGION"`
	InitialStatus      string   `env:"INITIAL_STATUS" envDefault:"Submitted"`
	MaxUploadBodyBytes int64    `env:"MAX_UPLOAD_BODY_BYTES" envDefault:"134217728"`

	Database DatabaseOptions
	Auth     AuthOptions
	Policy   PolicyOptions
	Blob     BlobOptions
	Notify   NotifyOptions
}

// LoadEnv loads the env files that exist and returns how many were loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files when present, parses the environment and validates the result.
func Load() (*Config, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = "eu-central-1"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent combinations
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeToken:
		if c.Auth.JWTSecret == "" && !c.Auth.DemoAuth {
			return fmt.Errorf("AUTH_MODE=token requires JWT_SECRET or DEMO_AUTH=true")
		}
	case AuthModeDelegated:
		if c.Auth.UserInfoURL == "" {
			return fmt.Errorf("AUTH_MODE=delegated requires IDP_USERINFO_URL")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q (want %s or %s)", c.Auth.Mode, AuthModeToken, AuthModeDelegated)
	}

	switch c.Blob.Backend {
	case BlobBackendS3:
	case BlobBackendMinio:
		if c.Blob.Bucket != "" && c.Blob.MinioEndpoint == "" {
			return fmt.Errorf("BLOB_BACKEND=minio requires MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	switch c.Database.Driver {
	case DriverPgx, DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	if !models.RequestStatus(c.InitialStatus).IsInitial() {
		return fmt.Errorf("INITIAL_STATUS must be %s or %s, got %q", models.StatusSubmitted, models.StatusOpen, c.InitialStatus)
	}

	if c.Notify.EmailEnabled && c.Notify.FromEmail == "" {
		return fmt.Errorf("NOTIFY_EMAIL_ENABLED requires SES_FROM_EMAIL")
	}
	return nil
}

// AllowAllOrigins reports whether CORS should accept any origin
func (c *Config) AllowAllOrigins() bool {
	return len(c.AllowedOrigins) == 0 || (len(c.AllowedOrigins) == 1 && strings.TrimSpace(c.AllowedOrigins[0]) == "*")
}

// IsAdminEmail reports whether email is in the configured admin allow-list
func (c AuthOptions) IsAdminEmail(email string) bool {
	for _, a := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(a), email) {
			return true
		}
	}
	return false
}
