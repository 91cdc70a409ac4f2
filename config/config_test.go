package config

import (
	"mini-thrift/protocol"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, protocol.FormatBinary, cfg.Server.WireFormat())
	assert.Len(t, cfg.Server.TransportOptions(), 1)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "mini-thrift.yaml", `
server:
  address: 0.0.0.0:7000
  format: compact
  max_conns: 8
  compress: true
  compress_min_size: 64
  shutdown_timeout: 2s
observer:
  metrics: true
  sample_rate: 50
store:
  kind: etcd
  endpoints: [10.0.0.1:2379, 10.0.0.2:2379]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Server.Address)
	assert.Equal(t, protocol.FormatCompact, cfg.Server.WireFormat())
	assert.Equal(t, 8, cfg.Server.MaxConns)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Len(t, cfg.Server.TransportOptions(), 2)
	assert.True(t, cfg.Observer.Metrics)
	assert.Equal(t, 50.0, cfg.Observer.SampleRate)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Store.Endpoints)

	// Untouched keys keep their defaults.
	assert.Equal(t, "tcp", cfg.Server.Network)
	assert.Equal(t, "/mini-thrift/", cfg.Store.Namespace)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "mini-thrift.yaml", "server:\n  address: 127.0.0.1:7000\n")
	t.Setenv("MINITHRIFT_SERVER_ADDRESS", "127.0.0.1:7100")
	t.Setenv("MINITHRIFT_OBSERVER_TRACING", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7100", cfg.Server.Address)
	assert.True(t, cfg.Observer.Tracing)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "custom.yaml", "server:\n  format: json\n")
	t.Setenv("MINITHRIFT_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, protocol.FormatJSON, cfg.Server.WireFormat())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Address, cfg.Server.Address)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"format":      func(c *Config) { c.Server.Format = "xml" },
		"address":     func(c *Config) { c.Server.Address = "" },
		"frame size":  func(c *Config) { c.Server.MaxFrameSize = 0 },
		"max conns":   func(c *Config) { c.Server.MaxConns = 0 },
		"log level":   func(c *Config) { c.Log.Level = "loud" },
		"sample rate": func(c *Config) { c.Observer.SampleRate = -1 },
		"store kind":  func(c *Config) { c.Store.Kind = "redis" },
		"etcd":        func(c *Config) { c.Store.Kind = "etcd" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
