package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfig marks settings that make a run impossible.
var ErrConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host" yaml:"host"`
	Port          int           `mapstructure:"port" yaml:"port"`
	Username      string        `mapstructure:"username" yaml:"username"`
	Password      string        `mapstructure:"password" yaml:"password"`
	TLS           bool          `mapstructure:"tls" yaml:"tls"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	Connections   int           `mapstructure:"connections" yaml:"connections"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DownloadConfig struct {
	OutDir             string   `mapstructure:"out_dir" yaml:"out_dir"`
	CancelThresholdPct float64  `mapstructure:"cancel_threshold_pct" yaml:"cancel_threshold_pct"`
	Par2Bin            string   `mapstructure:"par2_bin" yaml:"par2_bin"`
	UnrarBin           string   `mapstructure:"unrar_bin" yaml:"unrar_bin"`
	SevenZipBin        string   `mapstructure:"sevenzip_bin" yaml:"sevenzip_bin"`
	CleanupExtensions  []string `mapstructure:"cleanup_extensions" yaml:"cleanup_extensions"`
	RemoveNZB          bool     `mapstructure:"remove_nzb" yaml:"remove_nzb"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// StatusConfig enables the read-only progress API when Addr is set.
type StatusConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

const DefaultConnections = 25

// Example is printed by the -s flag.
const Example = `server:
  host: news.example.com
  port: 563
  tls: true
  username: username
  password: password
  connections: 25
  timeout: 60s

download:
  out_dir: ./downloads
  cancel_threshold_pct: 10
  par2_bin: par2
  unrar_bin: unrar
  cleanup_extensions: [par2]

log:
  path: nzbweaver.log
  level: info
  include_stdout: true

status:
  addr: ""
`

func Load(path string) (*Config, error) {

	if path == "" {
		path = "config.yaml"
	}

	// 1. Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// FALLBACK: If we are in Docker (or similar) and didn't provide a flag, check /config/config.yaml
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else {
				return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
					"To create one, run:\n" +
					"  nzbweaver -s > config.yaml\n" +
					"Then edit it with your Usenet credentials.")
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := newViper()

	// Read config File
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// FromReader loads YAML from r with the same defaults and env overrides as Load.
func FromReader(r io.Reader) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set Defaults
	v.SetDefault("server.port", 119)
	v.SetDefault("server.connections", DefaultConnections)
	v.SetDefault("server.timeout", "60s")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.cancel_threshold_pct", 0)
	v.SetDefault("download.cleanup_extensions", []string{"par2"})
	v.SetDefault("log.path", "nzbweaver.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	// Support Environment Variables
	v.SetEnvPrefix("NZBWEAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Warnings lists settings that are allowed but probably wrong.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Server.TLS && c.Server.Port == 119 {
		warnings = append(warnings, "TLS is enabled but port is set to 119 (standard non-TLS)")
	}
	return warnings
}

// Validate checks the mandatory settings and fills in sane defaults.
// It is also called after command line overrides are applied.
func (c *Config) Validate() error {
	s := &c.Server

	if s.Host == "" {
		return fmt.Errorf("%w: server host is required", ErrConfig)
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range 1-65535", ErrConfig, s.Port)
	}

	if s.Connections < 0 {
		return fmt.Errorf("%w: connections must not be negative", ErrConfig)
	}

	if s.Connections == 0 {
		// Default to a sane value
		s.Connections = DefaultConnections
	}

	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrConfig)
	}

	d := &c.Download

	if d.CancelThresholdPct < 0 || d.CancelThresholdPct > 100 {
		return fmt.Errorf("%w: cancel_threshold_pct %.1f out of range 0-100", ErrConfig, d.CancelThresholdPct)
	}

	if d.OutDir == "" {
		d.OutDir = "./downloads"
	}

	return nil
}
