package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for values the panel cannot run with.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}

	u, err := url.Parse(cfg.Device.BaseURL)
	switch {
	case cfg.Device.BaseURL == "":
		errs = append(errs, errors.New("device.base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("device.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("device.base_url scheme %q not supported", u.Scheme))
	}
	if cfg.Device.Timeout < 0 {
		errs = append(errs, errors.New("device.timeout must not be negative"))
	}
	if cfg.Device.RateLimit < 0 {
		errs = append(errs, errors.New("device.rate_limit must not be negative"))
	}
	if cfg.Device.StatusInterval < 0 {
		errs = append(errs, errors.New("device.status_interval must not be negative"))
	}

	if cfg.Panel.CommandHistoryMax < 1 {
		errs = append(errs, errors.New("panel.command_history_max must be at least 1"))
	}
	if cfg.Panel.ScriptHistoryMax < 1 {
		errs = append(errs, errors.New("panel.script_history_max must be at least 1"))
	}
	if len(cfg.Panel.VSetPins) == 0 {
		errs = append(errs, errors.New("panel.vset_pins must not be empty"))
	}
	if len(cfg.Panel.VReadPins) == 0 {
		errs = append(errs, errors.New("panel.vread_pins must not be empty"))
	}
	if cfg.Panel.Grid.Resolution < 1 {
		errs = append(errs, errors.New("panel.grid.resolution must be at least 1"))
	}
	for _, p := range []int{cfg.Panel.Grid.Right, cfg.Panel.Grid.Top, cfg.Panel.Grid.Left, cfg.Panel.Grid.Bottom} {
		if !contains(cfg.Panel.VSetPins, p) {
			errs = append(errs, fmt.Errorf("panel.grid pin %d is not an output pin", p))
		}
	}

	switch strings.ToLower(cfg.Logger.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format %q not supported", cfg.Logger.Format))
	}

	return errors.Join(errs...)
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
