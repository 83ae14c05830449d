// Package config loads application configuration from environment variables
// and an optional YAML file.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Known sink names accepted in THREADWATCH_SINKS.
const (
	SinkLog     = "log"
	SinkTracker = "tracker"
)

// Config holds the application configuration. Priority: ENV > YAML > defaults.
type Config struct {
	PollInterval     time.Duration `yaml:"poll_interval"      env:"THREADWATCH_POLL_INTERVAL"      env-default:"6s"`
	IdleLimit        int           `yaml:"idle_limit"         env:"THREADWATCH_IDLE_LIMIT"         env-default:"10"`
	ExecuteInterval  time.Duration `yaml:"execute_interval"   env:"THREADWATCH_EXECUTE_INTERVAL"   env-default:"3s"`
	StatusInterval   time.Duration `yaml:"status_interval"    env:"THREADWATCH_STATUS_INTERVAL"    env-default:"30s"`
	QueueCapacity    int           `yaml:"queue_capacity"     env:"THREADWATCH_QUEUE_CAPACITY"     env-default:"1000"`
	PollWorkers      int           `yaml:"poll_workers"       env:"THREADWATCH_POLL_WORKERS"       env-default:"5"`
	MaxActiveWatches int           `yaml:"max_active_watches" env:"THREADWATCH_MAX_ACTIVE_WATCHES" env-default:"1"`
	FetchAttempts    int           `yaml:"fetch_attempts"     env:"THREADWATCH_FETCH_ATTEMPTS"     env-default:"3"`
	FetchRate        float64       `yaml:"fetch_rate"         env:"THREADWATCH_FETCH_RATE"         env-default:"1.2"`

	ListenAddr string `yaml:"listen_addr" env:"THREADWATCH_LISTEN_ADDR" env-default:"127.0.0.1:8080"`
	DBPath     string `yaml:"db_path"     env:"THREADWATCH_DB_PATH"     env-default:"threadwatch.db"`

	GitHubToken  string `yaml:"github_token"   env:"THREADWATCH_GITHUB_TOKEN"`
	GitHubAPIURL string `yaml:"github_api_url" env:"THREADWATCH_GITHUB_API_URL"`

	SinksRaw     string `yaml:"sinks"      env:"THREADWATCH_SINKS"      env-default:"log"`
	LogLevel     string `yaml:"log_level"  env:"THREADWATCH_LOG_LEVEL"  env-default:"info"`
	LogFormat    string `yaml:"log_format" env:"THREADWATCH_LOG_FORMAT" env-default:"text"`
	SecretKeyHex string `yaml:"-"          env:"THREADWATCH_SECRET_KEY"`

	// Sinks is parsed from SinksRaw during validation.
	Sinks []string `yaml:"-" env:"-"`
	// SecretKey is the decoded 32-byte AES-256 key, nil when unset.
	SecretKey []byte `yaml:"-" env:"-"`
}

// HasGitHubToken reports whether a token was supplied through configuration.
// Without one the app starts and polling fails until a token is stored via the API.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// HasSink reports whether the named sink is enabled.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

// Load reads configuration and returns a validated Config. The YAML file named
// by THREADWATCH_CONFIG is read first when set; environment variables always
// take precedence over it.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("THREADWATCH_CONFIG"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks ranges and derives Sinks and SecretKey. Load calls it.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int64
	}{
		{"THREADWATCH_POLL_INTERVAL", int64(c.PollInterval)},
		{"THREADWATCH_IDLE_LIMIT", int64(c.IdleLimit)},
		{"THREADWATCH_EXECUTE_INTERVAL", int64(c.ExecuteInterval)},
		{"THREADWATCH_STATUS_INTERVAL", int64(c.StatusInterval)},
		{"THREADWATCH_QUEUE_CAPACITY", int64(c.QueueCapacity)},
		{"THREADWATCH_POLL_WORKERS", int64(c.PollWorkers)},
		{"THREADWATCH_MAX_ACTIVE_WATCHES", int64(c.MaxActiveWatches)},
		{"THREADWATCH_FETCH_ATTEMPTS", int64(c.FetchAttempts)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0", p.name)
		}
	}
	if c.FetchRate <= 0 {
		return fmt.Errorf("THREADWATCH_FETCH_RATE must be > 0 (got %v)", c.FetchRate)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("THREADWATCH_LOG_FORMAT must be text or json (got %q)", c.LogFormat)
	}

	sinks, err := parseSinks(c.SinksRaw)
	if err != nil {
		return err
	}
	c.Sinks = sinks

	key, err := parseSecretKey(c.SecretKeyHex)
	if err != nil {
		return err
	}
	c.SecretKey = key

	return nil
}

func parseSinks(raw string) ([]string, error) {
	var sinks []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || slices.Contains(sinks, name) {
			continue
		}
		if name != SinkLog && name != SinkTracker {
			return nil, fmt.Errorf("THREADWATCH_SINKS has unknown sink %q", name)
		}
		sinks = append(sinks, name)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("THREADWATCH_SINKS must name at least one sink")
	}
	return sinks, nil
}

func parseSecretKey(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("THREADWATCH_SECRET_KEY must be a hex string: %w", err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("THREADWATCH_SECRET_KEY must decode to 32 bytes (got %d)", len(decoded))
	}
	return decoded, nil
}
