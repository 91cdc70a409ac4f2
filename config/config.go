// Package config loads the server, client, logging, observer and store settings
// of the demo binary.
//
// Sources, later ones winning: built-in defaults, the config file (YAML, TOML or
// JSON), environment variables. Environment keys take the prefix MINITHRIFT and
// replace "." with "_": server.address → MINITHRIFT_SERVER_ADDRESS.
package config

import (
	"mini-thrift/log"
	"mini-thrift/protocol"
	"mini-thrift/transport"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MINITHRIFT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Log      log.Config     `mapstructure:"log"`
	Observer ObserverConfig `mapstructure:"observer"`
	Store    StoreConfig    `mapstructure:"store"`
}

type ServerConfig struct {
	Network         string        `mapstructure:"network"`
	Address         string        `mapstructure:"address"`
	Format          string        `mapstructure:"format"` // binary, compact or json
	MaxFrameSize    uint32        `mapstructure:"max_frame_size"`
	MaxMessageSize  int32         `mapstructure:"max_message_size"`
	MaxConns        int           `mapstructure:"max_conns"`
	Compress        bool          `mapstructure:"compress"`
	CompressMinSize int           `mapstructure:"compress_min_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ClientConfig struct {
	Address     string        `mapstructure:"address"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ObserverConfig struct {
	Logging bool `mapstructure:"logging"`
	// LogLevel is the level inbound calls are logged at.
	LogLevel string `mapstructure:"log_level"`
	// SampleRate caps logged calls per second; 0 logs every call.
	SampleRate     float64 `mapstructure:"sample_rate"`
	SampleBurst    int     `mapstructure:"sample_burst"`
	Metrics        bool    `mapstructure:"metrics"`
	MetricsAddress string  `mapstructure:"metrics_address"`
	Tracing        bool    `mapstructure:"tracing"`
}

type StoreConfig struct {
	Kind        string        `mapstructure:"kind"` // memory or etcd
	Endpoints   []string      `mapstructure:"endpoints"`
	Namespace   string        `mapstructure:"namespace"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Network:         "tcp",
			Address:         "127.0.0.1:9090",
			Format:          "binary",
			MaxFrameSize:    transport.DefaultMaxFrameSize,
			MaxMessageSize:  protocol.DefaultMaxMessageSize,
			MaxConns:        1024,
			CompressMinSize: 1024,
			ShutdownTimeout: 5 * time.Second,
		},
		Client: ClientConfig{
			Address:     "127.0.0.1:9090",
			DialTimeout: 5 * time.Second,
		},
		Log: log.DefaultConfig(),
		Observer: ObserverConfig{
			Logging:        true,
			LogLevel:       "debug",
			SampleBurst:    10,
			MetricsAddress: "127.0.0.1:9091",
		},
		Store: StoreConfig{
			Kind:        "memory",
			Namespace:   "/mini-thrift/",
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from path. An empty path falls back to
// $MINITHRIFT_CONFIG, then to mini-thrift.{yaml,toml,json} in . and ./configs;
// a missing file there is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mini-thrift")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "config: read")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults seeds every key so env-only configs work.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.network", cfg.Server.Network)
	v.SetDefault("server.address", cfg.Server.Address)
	v.SetDefault("server.format", cfg.Server.Format)
	v.SetDefault("server.max_frame_size", cfg.Server.MaxFrameSize)
	v.SetDefault("server.max_message_size", cfg.Server.MaxMessageSize)
	v.SetDefault("server.max_conns", cfg.Server.MaxConns)
	v.SetDefault("server.compress", cfg.Server.Compress)
	v.SetDefault("server.compress_min_size", cfg.Server.CompressMinSize)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("client.address", cfg.Client.Address)
	v.SetDefault("client.dial_timeout", cfg.Client.DialTimeout)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	v.SetDefault("observer.logging", cfg.Observer.Logging)
	v.SetDefault("observer.log_level", cfg.Observer.LogLevel)
	v.SetDefault("observer.sample_rate", cfg.Observer.SampleRate)
	v.SetDefault("observer.sample_burst", cfg.Observer.SampleBurst)
	v.SetDefault("observer.metrics", cfg.Observer.Metrics)
	v.SetDefault("observer.metrics_address", cfg.Observer.MetricsAddress)
	v.SetDefault("observer.tracing", cfg.Observer.Tracing)

	v.SetDefault("store.kind", cfg.Store.Kind)
	v.SetDefault("store.endpoints", cfg.Store.Endpoints)
	v.SetDefault("store.namespace", cfg.Store.Namespace)
	v.SetDefault("store.dial_timeout", cfg.Store.DialTimeout)
}

// Validate checks names and limits.
func (c *Config) Validate() error {
	if _, err := protocol.ParseFormat(c.Server.Format); err != nil {
		return errors.Wrap(err, "config: server.format")
	}
	if c.Server.Address == "" {
		return errors.New("config: server.address is empty")
	}
	if c.Server.MaxFrameSize == 0 || c.Server.MaxMessageSize <= 0 {
		return errors.Newf("config: frame and message limits must be positive, got %d and %d",
			c.Server.MaxFrameSize, c.Server.MaxMessageSize)
	}
	if c.Server.MaxConns <= 0 {
		return errors.Newf("config: server.max_conns must be positive, got %d", c.Server.MaxConns)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	if _, err := log.ParseLevel(c.Observer.LogLevel); err != nil {
		return errors.Wrap(err, "config: observer.log_level")
	}
	if c.Observer.SampleRate < 0 {
		return errors.Newf("config: observer.sample_rate must not be negative, got %v", c.Observer.SampleRate)
	}
	switch strings.ToLower(c.Store.Kind) {
	case "memory":
	case "etcd":
		if len(c.Store.Endpoints) == 0 {
			return errors.New("config: store.endpoints is empty for etcd store")
		}
	default:
		return errors.Newf("config: unknown store.kind %q", c.Store.Kind)
	}
	return nil
}

// WireFormat returns the parsed server format. Call after Validate.
func (s ServerConfig) WireFormat() protocol.Format {
	f, _ := protocol.ParseFormat(s.Format)
	return f
}

// TransportOptions maps the frame settings to transport options.
func (s ServerConfig) TransportOptions() []transport.Option {
	opts := []transport.Option{transport.WithMaxFrameSize(s.MaxFrameSize)}
	if s.Compress {
		opts = append(opts, transport.WithCompression(s.CompressMinSize))
	}
	return opts
}
