package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Candidate sources.
const (
	SourceSQLite = "sqlite"
	SourceOdoo   = "odoo"
)

type Config struct {
	Port       int    `yaml:"port"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`
	Language   string `yaml:"language"`
	ConfigName string `yaml:"config_name"`
	APIKey     string `yaml:"api_key"`
	// Candidate loading
	CandidateSource string `yaml:"candidate_source"`
	CandidateLimit  int    `yaml:"candidate_limit"`
	// Odoo backend
	OdooURL      string        `yaml:"odoo_url"`
	OdooDB       string        `yaml:"odoo_db"`
	OdooUser     string        `yaml:"odoo_user"`
	OdooPassword string        `yaml:"odoo_password"`
	OdooTimeout  time.Duration `yaml:"odoo_timeout"`
	// Sale publishing
	RabbitMQURL    string `yaml:"rabbitmq_url"`
	SaleExchange   string `yaml:"sale_exchange"`
	SaleRoutingKey string `yaml:"sale_routing_key"`
	// Event table changes
	EventExchange string `yaml:"event_exchange"`
	EventQueue    string `yaml:"event_queue"`
	OutboxBuffer   int    `yaml:"outbox_buffer"`
	OutboxWorkers  int    `yaml:"outbox_workers"`
	OutboxRetries  int    `yaml:"outbox_retries"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:            8742,
		DBPath:          "/data/pos.db",
		LogLevel:        "info",
		Language:        "en",
		ConfigName:      "main",
		CandidateSource: SourceSQLite,
		CandidateLimit:  50,
		OdooTimeout:     15 * time.Second,
		SaleExchange:    "sale.performed",
		SaleRoutingKey:  "sale",
		EventExchange:   "event",
		EventQueue:      "pos.event",
		OutboxBuffer:    100,
		OutboxWorkers:   2,
		OutboxRetries:   3,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DBPath = envStr("POS_DB_PATH", cfg.DBPath)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.Language = envStr("POS_LANG", cfg.Language)
	cfg.ConfigName = envStr("POS_CONFIG_NAME", cfg.ConfigName)
	cfg.APIKey = envStr("API_KEY", cfg.APIKey)
	cfg.CandidateSource = envStr("CANDIDATE_SOURCE", cfg.CandidateSource)
	cfg.CandidateLimit = envInt("CANDIDATE_LIMIT", cfg.CandidateLimit)
	cfg.OdooURL = envStr("ODOO_URL", cfg.OdooURL)
	cfg.OdooDB = envStr("ODOO_DB", cfg.OdooDB)
	cfg.OdooUser = envStr("ODOO_USER", cfg.OdooUser)
	cfg.OdooPassword = envStr("ODOO_PASSWORD", cfg.OdooPassword)
	cfg.OdooTimeout = envDuration("ODOO_TIMEOUT", cfg.OdooTimeout)
	cfg.RabbitMQURL = envStr("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.SaleExchange = envStr("SALE_EXCHANGE", cfg.SaleExchange)
	cfg.SaleRoutingKey = envStr("SALE_ROUTING_KEY", cfg.SaleRoutingKey)
	cfg.EventExchange = envStr("EVENT_EXCHANGE", cfg.EventExchange)
	cfg.EventQueue = envStr("EVENT_QUEUE", cfg.EventQueue)
	cfg.OutboxBuffer = envInt("OUTBOX_BUFFER", cfg.OutboxBuffer)
	cfg.OutboxWorkers = envInt("OUTBOX_WORKERS", cfg.OutboxWorkers)
	cfg.OutboxRetries = envInt("OUTBOX_RETRIES", cfg.OutboxRetries)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("POS_DB_PATH must not be empty")
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("CANDIDATE_LIMIT must be positive, got %d", c.CandidateLimit)
	}
	switch c.CandidateSource {
	case SourceSQLite:
	case SourceOdoo:
		if c.OdooURL == "" || c.OdooDB == "" || c.OdooUser == "" {
			return fmt.Errorf("ODOO_URL, ODOO_DB and ODOO_USER are required for the odoo source")
		}
	default:
		return fmt.Errorf("CANDIDATE_SOURCE must be %q or %q, got %q", SourceSQLite, SourceOdoo, c.CandidateSource)
	}
	if c.OutboxWorkers < 1 {
		return fmt.Errorf("OUTBOX_WORKERS must be positive, got %d", c.OutboxWorkers)
	}
	if c.OutboxRetries < 0 {
		return fmt.Errorf("OUTBOX_RETRIES must not be negative, got %d", c.OutboxRetries)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
