package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":5001", cfg.App.Listen)
	assert.Equal(t, 500*time.Millisecond, cfg.Resolver.Timeout)
	assert.Equal(t, "/etc/knot-resolver/hosts.local", cfg.Hosts.Path)
	assert.Equal(t, ReloadCommand, cfg.Hosts.ReloadMethod)
}

func TestLoadServerConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
resolver:
  stats_url: http://10.0.0.5:8888/metrics/json
  timeout: 250ms
hosts:
  path: /tmp/hosts.local
  reload_method: none
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8888/metrics/json", cfg.Resolver.StatsURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolver.Timeout)
	assert.Equal(t, "/tmp/hosts.local", cfg.Hosts.Path)
	assert.Equal(t, ReloadNone, cfg.Hosts.ReloadMethod)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, ":5001", cfg.App.Listen)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join("..", "..", "..", "configs", DefaultConfigFile))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultServerConfig(), cfg)
}

func TestLoadServerConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolver: [unclosed"), 0644))

	_, err := LoadServerConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"), true)
		require.Error(t, err)
	})

	t.Run("implicit missing file falls back to defaults", func(t *testing.T) {
		path, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"), false)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("explicit existing file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "server.yaml")
		require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))

		path, err := ResolveConfigPath(file, true)
		require.NoError(t, err)
		assert.Equal(t, file, path)
	})
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.App.Listen = ""
	cfg.Resolver.StatsURL = "not a url"
	cfg.Resolver.Timeout = 0
	cfg.Hosts.ReloadMethod = "reboot"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "app.listen")
	assert.Contains(t, msg, "resolver.stats_url")
	assert.Contains(t, msg, "resolver.timeout")
	assert.Contains(t, msg, "hosts.reload_method")
}

func TestValidateReloadMethods(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:   "command with default command",
			mutate: func(c *ServerConfig) {},
		},
		{
			name: "command without command",
			mutate: func(c *ServerConfig) {
				c.Hosts.ReloadCommand = nil
			},
			wantErr: "hosts.reload_command",
		},
		{
			name: "systemd without unit",
			mutate: func(c *ServerConfig) {
				c.Hosts.ReloadMethod = ReloadSystemd
				c.Resolver.ServiceName = ""
			},
			wantErr: "resolver.service_name",
		},
		{
			name: "none",
			mutate: func(c *ServerConfig) {
				c.Hosts.ReloadMethod = ReloadNone
				c.Hosts.ReloadCommand = nil
			},
		},
		{
			name: "unknown gin mode",
			mutate: func(c *ServerConfig) {
				c.App.Mode = "production"
			},
			wantErr: "app.mode",
		},
		{
			name: "test mode",
			mutate: func(c *ServerConfig) {
				c.App.Mode = ModeTest
			},
		},
		{
			name: "allowed origins",
			mutate: func(c *ServerConfig) {
				c.App.AllowOrigins = []string{"https://dash.example.com", "http://10.0.0.2:8080"}
			},
		},
		{
			name: "origin with path",
			mutate: func(c *ServerConfig) {
				c.App.AllowOrigins = []string{"https://dash.example.com/stats"}
			},
			wantErr: "app.allow_origins",
		},
		{
			name: "password hash without username",
			mutate: func(c *ServerConfig) {
				c.Auth.PasswordHash = "$2a$10$abc"
			},
			wantErr: "auth.username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyOverridesFromEnv(t *testing.T) {
	t.Setenv("KNOTSTATS_STATS_URL", "http://192.168.1.22:8888/metrics/json")
	t.Setenv("KNOTSTATS_HOSTS_FILE", "/srv/hosts.local")
	t.Setenv("KNOTSTATS_LISTEN", "127.0.0.1:9000")

	cfg := DefaultServerConfig()
	ApplyOverrides(cfg, NewViper())

	assert.Equal(t, "http://192.168.1.22:8888/metrics/json", cfg.Resolver.StatsURL)
	assert.Equal(t, "/srv/hosts.local", cfg.Hosts.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.App.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSaveServerConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.yaml")

	cfg := DefaultServerConfig()
	cfg.Resolver.StatsURL = "http://10.1.1.1:8453/metrics/json"
	require.NoError(t, SaveServerConfig(cfg, path))

	loaded, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
