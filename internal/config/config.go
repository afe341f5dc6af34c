// Package config loads scoreline's settings: built-in defaults, then an
// optional YAML file, then DATABASE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scoreline/internal/source"
	"github.com/roach88/scoreline/internal/store"
)

// Config is the complete configuration.
type Config struct {
	Database Database `yaml:"database"`
	Window   Window   `yaml:"window"`
	// Devices are the device_os values registrations may reference.
	Devices []string `yaml:"devices"`
	S3      S3       `yaml:"s3"`
	// Trace enables OpenTelemetry spans written to stderr.
	Trace bool `yaml:"trace"`
}

// Database selects and locates the store.
type Database struct {
	Driver   string `yaml:"driver" env:"DATABASE_DRIVER"`
	Path     string `yaml:"path" env:"DATABASE_PATH"`
	Host     string `yaml:"host" env:"DATABASE_HOST"`
	Port     int    `yaml:"port" env:"DATABASE_PORT"`
	Name     string `yaml:"name" env:"DATABASE_NAME"`
	User     string `yaml:"user" env:"DATABASE_USER"`
	Password string `yaml:"password" env:"DATABASE_PASSWORD"`
}

// Window is the admissible event time range. Bounds are dates (2006-01-02)
// or RFC 3339 timestamps, both inclusive.
type Window struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// S3 configures the client used for s3:// sources.
type S3 struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: Database{
			Driver:   string(store.DriverSQLite),
			Path:     "scoreline.db",
			Host:     "localhost",
			Port:     5432,
			Name:     "events_db",
			User:     "postgres",
			Password: "postgres_password",
		},
		Window: Window{
			From: "2024-10-07",
			To:   "2024-11-03",
		},
		Devices: []string{"ios", "android"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := env.Parse(&cfg.Database); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used.
func (c Config) Validate() error {
	if _, err := store.ParseDriver(c.Database.Driver); err != nil {
		return err
	}
	if _, _, err := c.Window.Bounds(); err != nil {
		return err
	}
	return nil
}

// StoreOptions returns the options store.Open needs.
func (d Database) StoreOptions() (store.Options, error) {
	driver, err := store.ParseDriver(d.Driver)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{Driver: driver, DSN: d.DSN(driver)}, nil
}

// DSN returns the SQLite path or the PostgreSQL connection URL.
func (d Database) DSN(driver store.Driver) string {
	if driver != store.DriverPostgres {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	return u.String()
}

// Bounds parses the window. A date-only bound is midnight UTC.
func (w Window) Bounds() (from, to time.Time, err error) {
	if from, err = parseBound(w.From); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window from: %w", err)
	}
	if to, err = parseBound(w.To); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window to: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("window ends (%s) before it starts (%s)", w.To, w.From)
	}
	return from, to, nil
}

func parseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a date nor an RFC 3339 timestamp", s)
	}
	return t.UTC(), nil
}

// S3Config converts to the source package's settings.
func (s S3) S3Config() source.S3Config {
	return source.S3Config{Region: s.Region, Endpoint: s.Endpoint, UsePathStyle: s.UsePathStyle}
}
