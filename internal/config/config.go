package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPath names the variable that overrides the config file location.
const EnvPath = "CSGOGC_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath gives a location.
const DefaultPath = "config/csgogc.toml"

type Config struct {
	GC        GCConfig        `toml:"gc"`
	Relay     RelayConfig     `toml:"relay"`
	Inventory InventoryConfig `toml:"inventory"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Journal   JournalConfig   `toml:"journal"`
	Scripting ScriptingConfig `toml:"scripting"`
	Data      DataConfig      `toml:"data"`
}

type GCConfig struct {
	AppID             uint32        `toml:"app_id" validate:"required"`
	ProtocolVersion   uint32        `toml:"protocol_version"`
	HelloInterval     time.Duration `toml:"hello_interval" validate:"min=1s"`
	RequestTimeout    time.Duration `toml:"request_timeout" validate:"min=100ms"`
	CasketWaitTimeout time.Duration `toml:"casket_wait_timeout" validate:"min=100ms"`
	InspectCacheSize  int           `toml:"inspect_cache_size" validate:"min=0"`
	InspectCacheTTL   time.Duration `toml:"inspect_cache_ttl"`
	CaptureFile       string        `toml:"capture_file"` // empty = no capture
}

type RelayConfig struct {
	URL          string        `toml:"url" validate:"omitempty,url"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
}

type InventoryConfig struct {
	BaseURL     string        `toml:"base_url" validate:"required,url"`
	SteamID     uint64        `toml:"steam_id"`
	Language    string        `toml:"language"`
	Count       int           `toml:"count" validate:"min=1,max=5000"`
	Backoff     time.Duration `toml:"backoff"`
	HTTPTimeout time.Duration `toml:"http_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"` // empty = disabled
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver" validate:"oneof=sqlite pgx"`
	DSN     string `toml:"dsn" validate:"required_if=Enabled true"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty = no hooks
}

type DataConfig struct {
	ItemCatalog string `toml:"item_catalog"`
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides (including an optional .env file) and validates the result.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePath returns flag if set, else EnvPath, else DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CSGOGC_RELAY_URL"); v != "" {
		cfg.Relay.URL = v
	}
	if v := os.Getenv("CSGOGC_STEAM_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CSGOGC_STEAM_ID: %w", err)
		}
		cfg.Inventory.SteamID = id
	}
	if v := os.Getenv("CSGOGC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CSGOGC_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
		cfg.Journal.Enabled = true
	}
	if v := os.Getenv("CSGOGC_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	return nil
}

func defaults() *Config {
	return &Config{
		GC: GCConfig{
			AppID:             730,
			ProtocolVersion:   2000202,
			HelloInterval:     10 * time.Second,
			RequestTimeout:    30 * time.Second,
			CasketWaitTimeout: 30 * time.Second,
			InspectCacheSize:  512,
			InspectCacheTTL:   10 * time.Minute,
		},
		Relay: RelayConfig{
			URL:          "ws://127.0.0.1:27060/gc",
			WriteTimeout: 10 * time.Second,
			DialTimeout:  15 * time.Second,
		},
		Inventory: InventoryConfig{
			BaseURL:     "https://steamcommunity.com",
			Language:    "english",
			Count:       2000,
			Backoff:     5 * time.Second,
			HTTPTimeout: 20 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			DSN:    "csgogc.db",
		},
		Data: DataConfig{
			ItemCatalog: "data/yaml/items.yaml",
		},
	}
}
