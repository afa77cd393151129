package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/drip/internal/model"
)

type Config struct {
	DatabaseURL   string // DRIP_DATABASE_URL (required)
	HTTPAddr      string // DRIP_HTTP_ADDR (default ":8080")
	NATSURL       string // DRIP_NATS_URL (optional, empty = no events)
	AuthToken     string // DRIP_AUTH_TOKEN (optional, empty = auth disabled)
	EscrowAccount string // DRIP_ESCROW_ACCOUNT (default "escrow")

	// Limits come from DRIP_MIN_RATE_PER_SECOND, DRIP_MIN_DEPOSIT, and
	// DRIP_MAX_MESSAGE_LENGTH; the config file overrides them when set.
	Limits model.Limits

	// Sync settings
	SyncInterval   time.Duration // DRIP_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // DRIP_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // DRIP_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // DRIP_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // DRIP_SYNC_S3_KEY (default "drip/backup.jsonl")
	SyncGitRepo    string        // DRIP_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // DRIP_SYNC_GIT_FILE (default "drip.jsonl")
	SyncGitBranch  string        // DRIP_SYNC_GIT_BRANCH (default "main")

	// Hooks are declared only in the config file (DRIP_CONFIG_FILE).
	Hooks []Hook
}

// Hook binds a shell command to event topic patterns. The command receives
// the event JSON on stdin.
type Hook struct {
	Topics  []string
	Command string
	Timeout time.Duration
	OnError string // OnErrorWarn (default) or OnErrorIgnore
}

// Hook failure policies.
const (
	OnErrorWarn   = "warn"
	OnErrorIgnore = "ignore"
)

// fileConfig is the TOML layout of the optional config file.
type fileConfig struct {
	Limits struct {
		MinRatePerSecond *int64 `toml:"min_rate_per_second"`
		MinDeposit       *int64 `toml:"min_deposit"`
		MaxMessageLength *int   `toml:"max_message_length"`
	} `toml:"limits"`
	Hooks []struct {
		Topics  []string `toml:"topics"`
		Command string   `toml:"command"`
		Timeout string   `toml:"timeout"`
		OnError string   `toml:"on_error"`
	} `toml:"hooks"`
}

// DefaultHookTimeout bounds hook commands that do not declare their own.
const DefaultHookTimeout = 30 * time.Second

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("DRIP_DATABASE_URL"),
		HTTPAddr:       envOrDefault("DRIP_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("DRIP_NATS_URL"),
		AuthToken:      os.Getenv("DRIP_AUTH_TOKEN"),
		EscrowAccount:  envOrDefault("DRIP_ESCROW_ACCOUNT", "escrow"),
		Limits:         model.DefaultLimits,
		SyncS3Bucket:   os.Getenv("DRIP_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("DRIP_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("DRIP_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("DRIP_SYNC_S3_KEY", "drip/backup.jsonl"),
		SyncGitRepo:    os.Getenv("DRIP_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("DRIP_SYNC_GIT_FILE", "drip.jsonl"),
		SyncGitBranch:  envOrDefault("DRIP_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DRIP_DATABASE_URL is required")
	}
	if !model.ValidAccountID(c.EscrowAccount) {
		return nil, fmt.Errorf("DRIP_ESCROW_ACCOUNT: invalid account id %q", c.EscrowAccount)
	}

	var err error
	if c.Limits.MinRatePerSecond, err = envInt64("DRIP_MIN_RATE_PER_SECOND", c.Limits.MinRatePerSecond); err != nil {
		return nil, err
	}
	if c.Limits.MinDeposit, err = envInt64("DRIP_MIN_DEPOSIT", c.Limits.MinDeposit); err != nil {
		return nil, err
	}
	maxLen, err := envInt64("DRIP_MAX_MESSAGE_LENGTH", int64(c.Limits.MaxMessageLength))
	if err != nil {
		return nil, err
	}
	c.Limits.MaxMessageLength = int(maxLen)

	intervalStr := envOrDefault("DRIP_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("DRIP_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	if path := os.Getenv("DRIP_CONFIG_FILE"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, fmt.Errorf("DRIP_CONFIG_FILE: %w", err)
		}
	}

	return c, nil
}

// applyFile overlays the TOML config file on top of env-derived settings.
func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return err
	}

	if fc.Limits.MinRatePerSecond != nil {
		c.Limits.MinRatePerSecond = *fc.Limits.MinRatePerSecond
	}
	if fc.Limits.MinDeposit != nil {
		c.Limits.MinDeposit = *fc.Limits.MinDeposit
	}
	if fc.Limits.MaxMessageLength != nil {
		c.Limits.MaxMessageLength = *fc.Limits.MaxMessageLength
	}

	for i, h := range fc.Hooks {
		if len(h.Topics) == 0 {
			return fmt.Errorf("hook %d: topics is required", i)
		}
		if h.Command == "" {
			return fmt.Errorf("hook %d: command is required", i)
		}
		hook := Hook{
			Topics:  h.Topics,
			Command: h.Command,
			Timeout: DefaultHookTimeout,
			OnError: OnErrorWarn,
		}
		if h.Timeout != "" {
			d, err := time.ParseDuration(h.Timeout)
			if err != nil {
				return fmt.Errorf("hook %d: timeout: %w", i, err)
			}
			hook.Timeout = d
		}
		switch h.OnError {
		case "", OnErrorWarn:
		case OnErrorIgnore:
			hook.OnError = OnErrorIgnore
		default:
			return fmt.Errorf("hook %d: on_error must be warn or ignore, got %q", i, h.OnError)
		}
		c.Hooks = append(c.Hooks, hook)
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
