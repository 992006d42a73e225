package config

import (
	"fmt"
	"strings"
)

const defaultLogLevel = "info"

// LogConfig sets the minimum level of the JSON logger. Access tokens and
// passwords are redacted from log records at every level.
type LogConfig struct {
	Level string `koanf:"level"`
}

// String returns a string representation of the log configuration.
func (c *LogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Level))
	return b.String()
}

// Validate accepts the level in any case, e.g. STOREFRONT_LOG_LEVEL=DEBUG.
func (c *LogConfig) Validate() error {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	switch c.Level {
	case "":
		c.Level = defaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Level)
	}
	return nil
}
