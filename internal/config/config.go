// Package config loads the vitalink TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "vitalink"
	DefaultPGSSLMode     = "disable"
	DefaultWhoopAPIBase  = "https://api.prod.whoop.com"
	DefaultWhoopScopes   = "read:profile read:recovery read:sleep read:workout read:body_measurement"
	DefaultCoachBaseURL  = "https://api.openai.com/v1"
	DefaultCoachModel    = "gpt-4o"
	DefaultStateTTL      = "5m"
	DefaultSweepSchedule = "@every 30m"
	DefaultSweepHorizon  = "1h"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Whoop    WhoopConfig    `toml:"whoop"`
	Twilio   TwilioConfig   `toml:"twilio"`
	Coach    CoachConfig    `toml:"coach"`
	Ingest   IngestConfig   `toml:"ingest"`
	Link     LinkConfig     `toml:"link"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// BaseURL is the externally reachable URL of this service, used to
	// build login links and the OAuth redirect URI.
	BaseURL string `toml:"base_url" validate:"required,url"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN returns the connection string for the pgx driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type WhoopConfig struct {
	APIBase      string `toml:"api_base"`
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
	Scopes       string `toml:"scopes"`
}

type TwilioConfig struct {
	AccountSID     string `toml:"account_sid" validate:"required"`
	AuthToken      string `toml:"auth_token" validate:"required"`
	WhatsAppNumber string `toml:"whatsapp_number" validate:"required"`
	// SendsPerSecond caps outbound message throughput. Zero disables the cap.
	SendsPerSecond float64 `toml:"sends_per_second"`
}

type CoachConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key" validate:"required"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type IngestConfig struct {
	TesseractBin string `toml:"tesseract_bin"`
	PdfToTextBin string `toml:"pdftotext_bin"`
	PdfToPpmBin  string `toml:"pdftoppm_bin"`
}

type LinkConfig struct {
	// StateSecret signs the OAuth state token. Required so callbacks
	// cannot forge identities.
	StateSecret string `toml:"state_secret" validate:"required"`
	StateTTL    string `toml:"state_ttl"`
	// SweepSchedule is a cron spec for the proactive token refresh sweep.
	SweepSchedule string `toml:"sweep_schedule"`
	// SweepHorizon is how close to expiry a credential must be before the
	// sweep refreshes it.
	SweepHorizon string `toml:"sweep_horizon"`
}

// StateTTLDuration parses StateTTL, falling back to the default on error.
func (c LinkConfig) StateTTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.StateTTL); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultStateTTL)
	return d
}

// SweepHorizonDuration parses SweepHorizon, falling back to the default on error.
func (c LinkConfig) SweepHorizonDuration() time.Duration {
	if d, err := time.ParseDuration(c.SweepHorizon); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultSweepHorizon)
	return d
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Whoop: WhoopConfig{
			APIBase: DefaultWhoopAPIBase,
			Scopes:  DefaultWhoopScopes,
		},
		Coach: CoachConfig{
			BaseURL:        DefaultCoachBaseURL,
			Model:          DefaultCoachModel,
			TimeoutSeconds: 60,
		},
		Ingest: IngestConfig{
			TesseractBin: "tesseract",
			PdfToTextBin: "pdftotext",
			PdfToPpmBin:  "pdftoppm",
		},
		Link: LinkConfig{
			StateTTL:      DefaultStateTTL,
			SweepSchedule: DefaultSweepSchedule,
			SweepHorizon:  DefaultSweepHorizon,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks required fields. Load does not call it so that partial
// configs stay loadable for tooling; serve validates before wiring.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}
