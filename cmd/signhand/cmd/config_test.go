package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signhand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, "bbolt", cfg.Storage.Backend)
	assert.Equal(t, "SIGNHAND_JWT_SECRET", cfg.Auth.SecretEnv)
	assert.Equal(t, 30*time.Second, cfg.Signer.Timeout)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
port: 9000
storage:
  backend: postgres
  postgres_dsn: postgres://localhost/signhand
auth:
  issuer: https://id.example.com
signer:
  command: /usr/bin/signer
  args: ["--in", "{input}", "--out", "{output}"]
  timeout: 45s
notify:
  webhooks:
    - url: https://hooks.example.com/sign
      max_tries: 2
sweep_interval: 1m
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "https://id.example.com", cfg.Auth.Issuer)
	// Unset keys keep their defaults.
	assert.Equal(t, "SIGNHAND_JWT_SECRET", cfg.Auth.SecretEnv)
	assert.Equal(t, []string{"--in", "{input}", "--out", "{output}"}, cfg.Signer.Args)
	assert.Equal(t, 45*time.Second, cfg.Signer.Timeout)
	require.Len(t, cfg.Notify.Webhooks, 1)
	assert.Equal(t, uint(2), cfg.Notify.Webhooks[0].MaxTries)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "prot: 9000\n"))
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"backend", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"postgres dsn", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"tls pair", func(c *Config) { c.TLSCert = "cert.pem" }},
		{"secret env", func(c *Config) { c.Auth.SecretEnv = "" }},
		{"signer timeout", func(c *Config) { c.Signer.Timeout = 0 }},
		{"webhook url", func(c *Config) { c.Notify.Webhooks = []WebhookConfig{{}} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestApplyServerFlags(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, serverCmd.Flags().Set("port", "9443"))
	require.NoError(t, serverCmd.Flags().Set("postgres-dsn", "postgres://db/signhand"))
	t.Cleanup(func() {
		serverCmd.Flags().Lookup("port").Changed = false
		serverCmd.Flags().Lookup("postgres-dsn").Changed = false
	})

	applyServerFlags(serverCmd, &cfg)
	assert.Equal(t, 9443, cfg.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://db/signhand", cfg.Storage.PostgresDSN)
	// Flags left alone do not override the file.
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LogConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
