package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Database connection. DatabaseURL wins when set; otherwise the DSN is
	// composed from the individual DB_* parameters.
	DatabaseURL      string
	DBHost           string
	DBPort           int
	DBUser           string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	DBEncoding       string
	DBConnectTimeout time.Duration

	// ARPAE telemetry source.
	BaseURL        string
	VariableFilter string
	MaxResults     int
	FetchTimeout   time.Duration

	// Ingestion schedule. ObservationDate pins every cycle to one YYYYMMDD
	// date key; when empty each cycle ingests the current date.
	IngestInterval  time.Duration
	ObservationDate string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional measurement event publication.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables (optionally .env),
// applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBHost:         envOrDefault("DB_HOST", "127.0.0.1"),
		DBUser:         envOrDefault("DB_USER", "root"),
		DBPassword:     envOrDefault("DB_PASSWORD", "root"),
		DBName:         envOrDefault("DB_NAME", "fiumesicuro"),
		DBSSLMode:      envOrDefault("DB_SSLMODE", "disable"),
		DBEncoding:     envOrDefault("DB_ENCODING", "UTF8"),
		BaseURL:        envOrDefault("ARPAE_BASE_URL", "https://apps.arpae.it/REST/meteo_osservati"),
		VariableFilter: envOrDefault("ARPAE_VARIABLE", "livello_idro"),
		HTTPAddr:       envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "json"),
		KafkaTopic:     envOrDefault("KAFKA_TOPIC", "hydro-measurements"),
	}

	var err error
	if cfg.DBPort, err = envInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.MaxResults, err = envInt("ARPAE_MAX_RESULTS", 1000); err != nil {
		return nil, err
	}
	if cfg.DBConnectTimeout, err = envDuration("DB_CONNECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IngestInterval, err = envDuration("INGEST_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.ObservationDate = strings.TrimSpace(os.Getenv("OBSERVATION_DATE"))
	if cfg.ObservationDate != "" {
		if _, err := domain.ParseDateKey(cfg.ObservationDate); err != nil {
			return nil, fmt.Errorf("invalid OBSERVATION_DATE %q: want YYYYMMDD", cfg.ObservationDate)
		}
	}

	cfg.KafkaBrokers = splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092"))
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "1" || strings.EqualFold(v, "true")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IngestInterval <= 0 {
		return errors.New("INGEST_INTERVAL must be positive")
	}
	if c.MaxResults <= 0 {
		return errors.New("ARPAE_MAX_RESULTS must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.BaseURL == "" {
		return errors.New("ARPAE_BASE_URL is required")
	}
	if c.DatabaseURL == "" && (c.DBHost == "" || c.DBName == "") {
		return errors.New("either DATABASE_URL or DB_HOST/DB_NAME is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	return nil
}

// DSN returns the PostgreSQL connection string: DATABASE_URL verbatim when
// set, otherwise composed from the DB_* parameters.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	q.Set("client_encoding", c.DBEncoding)
	q.Set("connect_timeout", strconv.Itoa(int(c.DBConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
