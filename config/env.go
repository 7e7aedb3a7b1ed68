package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment override name.
const EnvPrefix = "LISTINGS_"

// EnvString returns the trimmed value of LISTINGS_<name> when it is set and
// non-empty.
func EnvString(name string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses LISTINGS_<name> as an integer. ok is false when the variable
// is unset.
func EnvInt(name string) (int, bool, error) {
	raw, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	return value, true, nil
}

// ApplyEnv overlays the supported environment overrides onto c.
func (c *Config) ApplyEnv() error {
	if value, ok, err := EnvInt("PAGES"); err != nil {
		return err
	} else if ok {
		c.Pages = value
	}
	if value, ok, err := EnvInt("CONCURRENCY"); err != nil {
		return err
	} else if ok {
		c.Concurrency = value
	}
	if value, ok := EnvString("BASE_URL"); ok {
		c.BaseURL = value
	}
	if value, ok := EnvString("OUTPUT"); ok {
		c.OutputFile = value
	}
	if value, ok := EnvString("METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	return nil
}
