package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from defaults, then the
// YAML file, then explicitly set flags.
type Config struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Signer  SignerConfig  `yaml:"signer"`
	// SystemCertificate is used when a user's stored certificate cannot be
	// read. Optional.
	SystemCertificate SystemCertConfig `yaml:"system_certificate"`
	Notify            NotifyConfig     `yaml:"notify"`

	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type AuthConfig struct {
	// SecretEnv names the environment variable holding the HS256 key.
	SecretEnv string `yaml:"secret_env"`
	Issuer    string `yaml:"issuer"`
}

type SignerConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type SystemCertConfig struct {
	Path        string `yaml:"path"`
	PasswordEnv string `yaml:"password_env"`
}

type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL        string `yaml:"url"`
	AuthHeader string `yaml:"auth_header"`
	QueueSize  int    `yaml:"queue_size"`
	MaxTries   uint   `yaml:"max_tries"`
}

func defaultConfig() Config {
	return Config{
		Port:    8443,
		DataDir: "./data",
		Log:     LogConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{Backend: "bbolt"},
		Auth:    AuthConfig{SecretEnv: "SIGNHAND_JWT_SECRET"},
		Signer:  SignerConfig{Timeout: 30 * time.Second},
		SystemCertificate: SystemCertConfig{
			PasswordEnv: "SIGNHAND_SYSTEM_CERT_PASSWORD",
		},
		SweepInterval: 5 * time.Minute,
	}
}

// loadConfig returns the defaults overlaid with the file at path, if any.
// Unknown keys are rejected.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Storage.Backend {
	case "bbolt":
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required for the bbolt backend"))
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	if c.Auth.SecretEnv == "" {
		errs = append(errs, errors.New("auth.secret_env is required"))
	}
	if c.Signer.Timeout <= 0 {
		errs = append(errs, errors.New("signer.timeout must be positive"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("sweep_interval must not be negative"))
	}
	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			errs = append(errs, fmt.Errorf("notify.webhooks[%d].url is required", i))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
