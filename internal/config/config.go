// Package config loads connection and runtime settings from files and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to reach the graph engine and run the tools.
type Config struct {
	Host     string `mapstructure:"host" env:"HOST"`
	Port     int    `mapstructure:"port" env:"PORT"`
	Username string `mapstructure:"username" env:"USERNAME"`
	Password string `mapstructure:"password" env:"PASSWORD"`
	Graph    string `mapstructure:"graph" env:"GRAPH"`

	// AutoCloseTimeout is the deferred policy delay when none is given.
	AutoCloseTimeout time.Duration `mapstructure:"auto_close_timeout" env:"AUTO_CLOSE_TIMEOUT"`

	LogLevel       string `mapstructure:"log_level" env:"LOG_LEVEL"`
	LogFormat      string `mapstructure:"log_format" env:"LOG_FORMAT"`
	ListenAddr     string `mapstructure:"listen_addr" env:"LISTEN_ADDR"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled" env:"METRICS_ENABLED"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LATTICE_"

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:             "localhost",
		Port:             6379,
		Graph:            "lattice",
		AutoCloseTimeout: domain.DefaultAutoCloseTimeout,
		LogLevel:         "info",
		LogFormat:        "text",
		ListenAddr:       ":8080",
		MetricsEnabled:   true,
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Credentials returns the login pair for the engine.
func (c Config) Credentials() domain.Credentials {
	return domain.Credentials{Username: c.Username, Password: c.Password}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.AutoCloseTimeout < 0 {
		return fmt.Errorf("auto_close_timeout must not be negative")
	}
	return nil
}

// Load reads path over the defaults. The format follows the extension
// (.yaml, .yml, .toml or .json). An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(millisHook),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// millisHook reads bare numbers as milliseconds for durations, so
// "auto_close_timeout: 5000" means five seconds.
func millisHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch n := data.(type) {
	case int:
		return time.Duration(n) * time.Millisecond, nil
	case int64:
		return time.Duration(n) * time.Millisecond, nil
	case float64:
		return time.Duration(n * float64(time.Millisecond)), nil
	case string:
		return parseDuration(n)
	}
	return data, nil
}

// parseDuration accepts Go durations ("5s") and bare integers as milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// ApplyEnv overrides cfg with any LATTICE_* variables that are set.
// Durations follow the file rules: a bare number means milliseconds.
func ApplyEnv(cfg *Config) error {
	opts := env.Options{
		Prefix: EnvPrefix,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return parseDuration(v)
			},
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve loads path and applies the environment on top.
func Resolve(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
