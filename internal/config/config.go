// Package config loads daemon configuration from defaults, an optional YAML
// file, FIGPRESENCE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
	"github.com/eliteGoblin/focusd/figpresence/internal/usecase"
)

// EnvPrefix is prepended to every environment override, e.g. FIGPRESENCE_POLL_INTERVAL.
const EnvPrefix = "FIGPRESENCE"

// ConfigFileName is looked up in the data directory when no --config is given.
const ConfigFileName = "config.yaml"

// Config is the resolved daemon configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	App      string `mapstructure:"app"`
	DataDir  string `mapstructure:"data_dir"`

	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	SendTimeout       time.Duration `mapstructure:"send_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	MinUpdateInterval time.Duration `mapstructure:"min_update_interval"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RecentFilesTTL    time.Duration `mapstructure:"recent_files_ttl"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	Discord DiscordConfig `mapstructure:"discord"`
}

// DiscordConfig configures the IPC connection.
type DiscordConfig struct {
	ClientID  string `mapstructure:"client_id"`
	SocketDir string `mapstructure:"socket_dir"` // Overrides the runtime-dir search (unix only)
}

// Options tells Load where to look besides the defaults and the environment.
type Options struct {
	ConfigFile string         // Explicit config file; missing is an error
	Flags      *pflag.FlagSet // Flags named after keys with "-" for "_" (e.g. --data-dir)
}

func setDefaults(v *viper.Viper) {
	engine := usecase.DefaultEngineConfig()
	publisher := usecase.DefaultPublisherConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("app", "figma")
	v.SetDefault("data_dir", infra.DefaultDataDir())
	v.SetDefault("poll_interval", engine.PollInterval)
	v.SetDefault("probe_timeout", engine.ProbeTimeout)
	v.SetDefault("reconnect_interval", engine.ReconnectInterval)
	v.SetDefault("send_timeout", publisher.SendTimeout)
	v.SetDefault("handshake_timeout", publisher.HandshakeTimeout)
	v.SetDefault("min_update_interval", publisher.MinInterval)
	v.SetDefault("reconnect_delay", publisher.ReconnectDelay)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("recent_files_ttl", 30*time.Second)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("discord.client_id", DefaultClientID)
	v.SetDefault("discord.socket_dir", "")
}

// Load resolves the configuration. Precedence, highest first: flags that were
// set, environment, config file, defaults.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, Config{})
	// The conventional variable used by Rich Presence tooling.
	if err := v.BindEnv("discord.client_id", EnvPrefix+"_DISCORD_CLIENT_ID", "DISCORD_CLIENT_ID"); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.DataDir = infra.ExpandHome(c.DataDir)
	c.Discord.SocketDir = infra.ExpandHome(c.Discord.SocketDir)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	path := explicit
	if path == "" {
		path = filepath.Join(infra.ExpandHome(v.GetString("data_dir")), ConfigFileName)
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// bindEnvs registers every mapstructure key so Unmarshal sees environment
// values even for keys that have no default.
func bindEnvs(v *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	for i := 0; i < ift.NumField(); i++ {
		fv := ifv.Field(i)
		ft := ift.Field(i)

		tv, ok := ft.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		switch fv.Kind() {
		case reflect.Struct:
			bindEnvs(v, fv.Interface(), append(parts, tv)...)
		default:
			_ = v.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"app":           "app",
	"data-dir":      "data_dir",
	"poll-interval": "poll_interval",
	"metrics-addr":  "metrics_addr",
	"client-id":     "discord.client_id",
	"socket-dir":    "discord.socket_dir",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// DefaultClientID is the Discord application registered for figpresence.
const DefaultClientID = "1454711835965259934"

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	var err error

	positive := map[string]time.Duration{
		"poll_interval":      c.PollInterval,
		"probe_timeout":      c.ProbeTimeout,
		"send_timeout":       c.SendTimeout,
		"handshake_timeout":  c.HandshakeTimeout,
		"heartbeat_interval": c.HeartbeatInterval,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", key, positive[key]))
		}
	}

	nonNegative := map[string]time.Duration{
		"min_update_interval": c.MinUpdateInterval,
		"reconnect_delay":     c.ReconnectDelay,
		"reconnect_interval":  c.ReconnectInterval,
		"recent_files_ttl":    c.RecentFilesTTL,
	}
	for _, key := range sortedKeys(nonNegative) {
		if nonNegative[key] < 0 {
			err = multierr.Append(err, fmt.Errorf("%s must not be negative, got %s", key, nonNegative[key]))
		}
	}

	if c.DataDir == "" {
		err = multierr.Append(err, errors.New("data_dir must be set"))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", lerr))
	}
	if c.Discord.ClientID != "" {
		if _, perr := strconv.ParseUint(c.Discord.ClientID, 10, 64); perr != nil {
			err = multierr.Append(err, fmt.Errorf("discord.client_id must be a numeric application id, got %q", c.Discord.ClientID))
		}
	}

	return err
}

// EngineConfig returns the sync engine timings.
func (c *Config) EngineConfig() usecase.EngineConfig {
	return usecase.EngineConfig{
		PollInterval:      c.PollInterval,
		ProbeTimeout:      c.ProbeTimeout,
		ReconnectInterval: c.ReconnectInterval,
	}
}

// PublisherConfig returns the publisher timings.
func (c *Config) PublisherConfig() usecase.PublisherConfig {
	return usecase.PublisherConfig{
		MinInterval:      c.MinUpdateInterval,
		ReconnectDelay:   c.ReconnectDelay,
		HandshakeTimeout: c.HandshakeTimeout,
		SendTimeout:      c.SendTimeout,
	}
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
