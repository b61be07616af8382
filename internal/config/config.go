// Package config reads the server settings from flags, falling back to
// LEFTOVERLINK_* environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds runtime configuration shared across the application.
type Config struct {
	Addr          string
	DBPath        string
	Store         string
	LogPath       string
	Passcode      string
	Seed          bool
	MaxImageBytes int
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:          ":8080",
		DBPath:        ":memory:",
		Store:         StoreMemory,
		Seed:          true,
		MaxImageBytes: 5 << 20,
	}
}

// Usage is the help text printed for -h.
const Usage = `Usage: leftoverlink [flags]

Flags:
  -a, -addr <host:port>   listen address (default: :8080)
  -d, -db <path>          SQLite database path (default: :memory:)
  -s, -store <kind>       listing store: memory or sqlite (default: memory)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -p, -passcode <code>    resident passcode (default: generated on start)
  -seed                   load demo listings on start (default: true)
  -max-image <bytes>      largest accepted photo upload (default: 5242880)
  -h, -help               show this help and exit

Every flag can also be set with LEFTOVERLINK_<NAME>, e.g. LEFTOVERLINK_ADDR.
`

// ErrHelp is returned when -h or -help was given.
var ErrHelp = flag.ErrHelp

// Load parses args on top of environment values read through getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("leftoverlink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "")
	fs.StringVar(&cfg.Store, "s", cfg.Store, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.Passcode, "passcode", cfg.Passcode, "")
	fs.StringVar(&cfg.Passcode, "p", cfg.Passcode, "")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "")
	fs.IntVar(&cfg.MaxImageBytes, "max-image", cfg.MaxImageBytes, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that flag parsing cannot.
func (c *Config) Validate() error {
	if c.Store != StoreMemory && c.Store != StoreSQLite {
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreSQLite)
	}
	if c.Addr == "" {
		return errors.New("listen address must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("database path must not be empty")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("max-image must be positive")
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	env := func(name string) string {
		return strings.TrimSpace(getenv("LEFTOVERLINK_" + name))
	}

	if v := env("ADDR"); v != "" {
		c.Addr = v
	}
	if v := env("DB"); v != "" {
		c.DBPath = v
	}
	if v := env("STORE"); v != "" {
		c.Store = v
	}
	if v := env("LOG"); v != "" {
		c.LogPath = v
	}
	if v := env("PASSCODE"); v != "" {
		c.Passcode = v
	}
	if v := env("SEED"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LEFTOVERLINK_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := env("MAX_IMAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEFTOVERLINK_MAX_IMAGE: %w", err)
		}
		c.MaxImageBytes = n
	}
	return nil
}
