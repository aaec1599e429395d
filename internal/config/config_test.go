package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	def := Default()
	assert.Equal(t, def.Addr, cfg.Addr)
	assert.Equal(t, def.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, def.HistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, def.Store, cfg.Store)
	assert.Equal(t, def.Feed, cfg.Feed)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "addr: \":9000\"\nhistory_limit: 50\nstore:\n  driver: sqlite3\n  dsn: file.db\nfeed:\n  backend: redis\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RELAYCHAT_HISTORY_LIMIT", "25")
	t.Setenv("RELAYCHAT_STORE_DSN", "env.db")
	t.Setenv("RELAYCHAT_SHUTDOWN_TIMEOUT", "2s")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr, "file overrides default")
	assert.Equal(t, 25, cfg.HistoryLimit, "env overrides file")
	assert.Equal(t, "env.db", cfg.Store.DSN)
	assert.Equal(t, FeedRedis, cfg.Feed.Backend)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "relaychat", cfg.Feed.ChannelPrefix, "unset keys keep defaults")
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "debug", LogFormat: LogFormatJSON})

	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, Default().HistoryLimit, cfg.HistoryLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres", mutate: func(c *Config) { c.Store.Driver = DriverPostgres }},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: true},
		{name: "empty dsn", mutate: func(c *Config) { c.Store.DSN = "" }, wantErr: true},
		{name: "unknown feed", mutate: func(c *Config) { c.Feed.Backend = "kafka" }, wantErr: true},
		{name: "json logs", mutate: func(c *Config) { c.LogFormat = LogFormatJSON }},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "zero history", mutate: func(c *Config) { c.HistoryLimit = 0 }, wantErr: true},
		{name: "cert without key", mutate: func(c *Config) { c.TLSCertFile = "cert.pem" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
