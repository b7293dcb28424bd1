package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration marks a startup-fatal configuration problem.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError lists the required settings that were missing or invalid.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("configuration error: missing required settings: %s", strings.Join(e.Missing, ", "))
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Auth          AuthConfig
	DevOTP        DevOTPConfig
	Store         StoreConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// AuthConfig carries the two process-wide secrets and the OTP/session policy.
type AuthConfig struct {
	OTPSecret         string
	SessionSecret     string
	OTPTTL            time.Duration
	SessionTTL        time.Duration
	ResendInterval    time.Duration
	MaxVerifyAttempts int
	SessionIssuer     string
	CookieName        string
	CookieSecure      bool
	CookieDomain      string
}

type DevOTPConfig struct {
	Window         time.Duration
	PreviewBaseURL string
}

type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	OTPTopic    string
	EventsTopic string
}

type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
}

type KMSConfig struct {
	Enabled bool
	Region  string
	KeyID   string
}

// LoadConfig reads the process configuration from the environment. A .env file in the
// working directory is honoured when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTOCERT", false),
			Domain:       getEnv("SERVER_DOMAIN", "localhost"),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "./certs"),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CORSOrigins:  getEnvList("SERVER_CORS_ORIGINS", []string{"https://*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			OTPSecret:         os.Getenv("OTP_SECRET"),
			SessionSecret:     os.Getenv("SESSION_SECRET"),
			OTPTTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
			SessionTTL:        getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			ResendInterval:    getEnvDuration("OTP_RESEND_INTERVAL", 60*time.Second),
			MaxVerifyAttempts: getEnvInt("OTP_MAX_VERIFY_ATTEMPTS", 5),
			SessionIssuer:     getEnv("SESSION_ISSUER", "creator-auth"),
			CookieName:        getEnv("SESSION_COOKIE_NAME", "creator_session"),
			CookieDomain:      getEnv("SESSION_COOKIE_DOMAIN", ""),
		},
		DevOTP: DevOTPConfig{
			Window:         getEnvDuration("DEV_OTP_WINDOW", 60*time.Second),
			PreviewBaseURL: getEnv("DEV_OTP_PREVIEW_BASE_URL", "http://localhost:8080/api/v1/auth/dev/otp/preview"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvList("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "creator_auth"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvBool("KAFKA_ENABLED", false),
			Brokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OTPTopic:    getEnv("KAFKA_OTP_TOPIC", "auth.otp.delivery"),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "auth.events"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    getEnv("ELASTICSEARCH_INDEX", "auth-events"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "creator_auth"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			Region:  getEnv("KMS_REGION", "us-east-1"),
			KeyID:   getEnv("KMS_KEY_ID", ""),
		},
	}

	cfg.Auth.CookieSecure = getEnvBool("SESSION_COOKIE_SECURE", cfg.IsProduction())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate refuses configurations that would run with undefined cryptographic behaviour.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Auth.OTPSecret) == "" {
		missing = append(missing, "OTP_SECRET")
	}
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	switch c.Store.Backend {
	case "redis", "scylla", "memory":
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown STORE_BACKEND %q", c.Store.Backend)}
	}
	if c.IsProduction() && c.Store.Backend == "memory" {
		return &ConfigurationError{Reason: "STORE_BACKEND=memory is not allowed in production"}
	}
	if c.IsProduction() && !c.Kafka.Enabled {
		return &ConfigurationError{Reason: "KAFKA_ENABLED is required in production for OTP delivery"}
	}
	if c.KMS.Enabled && c.KMS.Region == "" {
		return &ConfigurationError{Missing: []string{"KMS_REGION"}}
	}
	if c.Auth.OTPTTL <= 0 || c.Auth.SessionTTL <= 0 {
		return &ConfigurationError{Reason: "OTP_TTL and SESSION_TTL must be positive"}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
