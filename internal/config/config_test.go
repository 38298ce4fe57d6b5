package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultWhoopAPIBase, cfg.Whoop.APIBase)
	assert.Equal(t, DefaultCoachModel, cfg.Coach.Model)
	assert.Equal(t, "tesseract", cfg.Ingest.TesseractBin)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"
base_url = "https://coach.example.com"

[whoop]
client_id = "abc"
client_secret = "def"

[link]
state_secret = "topsecret"
state_ttl = "10m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://coach.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "abc", cfg.Whoop.ClientID)
	assert.Equal(t, 10*time.Minute, cfg.Link.StateTTLDuration())
	// Untouched sections keep defaults.
	assert.Equal(t, DefaultPGHost, cfg.Postgres.Host)
}

func TestStateTTLDurationFallsBack(t *testing.T) {
	cfg := LinkConfig{StateTTL: "not-a-duration"}
	assert.Equal(t, 5*time.Minute, cfg.StateTTLDuration())
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Error(t, Validate(cfg))
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "vitalink", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/vitalink?sslmode=disable", cfg.DSN())
}
