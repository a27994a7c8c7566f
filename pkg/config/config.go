// Package config reads binary settings from flags, with defaults taken
// from CANVAS_* environment variables.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr           string
	Database       string
	Board          string
	LogLevel       slog.Level
	BackupInterval time.Duration
	MDNS           bool
}

// Load parses args (without the program name) into a Config.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &Config{}
	fs.StringVar(&c.Addr, "addr", getEnv("CANVAS_ADDR", "localhost:8080"), "the address to listen on or request from")
	fs.StringVar(&c.Database, "db", getEnv("CANVAS_DB", "canvas.sqlite3"), "the sqlite database holding saved boards")
	fs.StringVar(&c.Board, "board", getEnv("CANVAS_BOARD", "default"), "the board to open")
	level := fs.String("log-level", getEnv("CANVAS_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.DurationVar(&c.BackupInterval, "backup-interval", getEnvAsDuration("CANVAS_BACKUP_INTERVAL", 5*time.Second), "how often boards are saved")
	fs.BoolVar(&c.MDNS, "mdns", getEnvAsBool("CANVAS_MDNS", false), "advertise or browse for boards on the local network")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(*level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", *level, err)
	}
	if c.BackupInterval <= 0 {
		return nil, fmt.Errorf("backup interval must be positive, got %s", c.BackupInterval)
	}
	return c, nil
}

// Logger returns a text logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
