package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Device DeviceConfig `yaml:"device"`
	Panel  PanelConfig  `yaml:"panel"`
	Logger LoggerConfig `yaml:"logger"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local panel server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DeviceConfig represents the connection to the serial backend
type DeviceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// Outbound pacing towards the backend. RateLimit is requests per second,
	// zero disables the limiter.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`

	Breaker BreakerConfig `yaml:"breaker"`

	// StatusInterval drives the /isConnected watcher. Zero disables it.
	StatusInterval time.Duration `yaml:"status_interval"`
}

// BreakerConfig configures fail-fast behaviour when the backend is down
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PanelConfig represents the control panel behaviour
type PanelConfig struct {
	CommandHistoryMax int           `yaml:"command_history_max"`
	ScriptHistoryMax  int           `yaml:"script_history_max"`
	FlashTimeout      time.Duration `yaml:"flash_timeout"`
	VSetPins          []int         `yaml:"vset_pins"`
	VReadPins         []int         `yaml:"vread_pins"`
	Grid              GridConfig    `yaml:"grid"`
}

// GridConfig holds the defaults of the coordinate grid widget
type GridConfig struct {
	Right      int  `yaml:"right"`
	Top        int  `yaml:"top"`
	Left       int  `yaml:"left"`
	Bottom     int  `yaml:"bottom"`
	Settling   int  `yaml:"settling"`
	Resolution int  `yaml:"resolution"`
	Autosend   bool `yaml:"autosend"`
}

// LoggerConfig represents the logging setup
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
	Buffer int    `yaml:"buffer"` // entries kept for /api/logs
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Device: DeviceConfig{
			BaseURL:   "http://localhost:8081",
			Timeout:   5 * time.Second,
			RateLimit: 20,
			Burst:     5,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     10 * time.Second,
				Interval:    60 * time.Second,
			},
			StatusInterval: 5 * time.Second,
		},
		Panel: PanelConfig{
			CommandHistoryMax: 15,
			ScriptHistoryMax:  10,
			FlashTimeout:      2 * time.Second,
			VSetPins:          []int{3, 9, 10, 11},
			VReadPins:         []int{0, 1, 2, 3},
			Grid: GridConfig{
				Right:      3,
				Top:        9,
				Left:       10,
				Bottom:     11,
				Settling:   0,
				Resolution: 1,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
			Buffer: 500,
		},
	}
}

// searchPaths are tried in order when no explicit path is given
var searchPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/arduino-control/config.yaml",
}

// Load loads configuration from the given file, or from the first file found
// in the search paths when path is empty. A missing file is not an error when
// searching: defaults are returned with env overrides applied.
func Load(path string) (*Config, error) {
	paths := searchPaths
	if path != "" {
		paths = []string{path}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	cfg := Default()
	if err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg.ConfigPath = paths[0]
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", loadedPath, err)
		}
		cfg.ConfigPath = loadedPath
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps ARDUINO_CONTROL_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARDUINO_CONTROL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ARDUINO_CONTROL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("ARDUINO_CONTROL_BACKEND_URL"); v != "" {
		cfg.Device.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ARDUINO_CONTROL_STATUS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Device.StatusInterval = d
		}
	}
	if v := os.Getenv("ARDUINO_CONTROL_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ARDUINO_CONTROL_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
