package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "csgogc.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[gc]
hello_interval = "2s"
casket_wait_timeout = "5s"

[inventory]
steam_id = 76561198000000001

[logging]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(730), cfg.GC.AppID, "untouched default")
	assert.Equal(t, 2*time.Second, cfg.GC.HelloInterval)
	assert.Equal(t, 5*time.Second, cfg.GC.CasketWaitTimeout)
	assert.Equal(t, uint64(76561198000000001), cfg.Inventory.SteamID)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.GC.RequestTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CSGOGC_STEAM_ID", "42")
	t.Setenv("CSGOGC_LOG_LEVEL", "warn")
	t.Setenv("CSGOGC_JOURNAL_DSN", "file:test.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Inventory.SteamID)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "file:test.db", cfg.Journal.DSN)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "[logging]\nlevel = \"loud\"\n"},
		{"bad journal driver", "[journal]\ndriver = \"mysql\"\n"},
		{"hello too fast", "[gc]\nhello_interval = \"10ms\"\n"},
		{"unparsable", "[gc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Setenv("CSGOGC_STEAM_ID", "not-a-number")
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "x.toml", ResolvePath("x.toml"))
	t.Setenv(EnvPath, "env.toml")
	assert.Equal(t, "env.toml", ResolvePath(""))
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))
}
