package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	// maxShutdownTimeout bounds how long an in-flight checkout may hold the process.
	maxShutdownTimeout = time.Minute
)

// ShutdownConfig is the grace period given to the HTTP and pprof servers,
// the event publisher and the telemetry exporters when the process stops.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("shutdown timeout cannot be negative: %s", c.Timeout)
	case c.Timeout == 0:
		c.Timeout = defaultShutdownTimeout
	case c.Timeout > maxShutdownTimeout:
		return fmt.Errorf("shutdown timeout %s exceeds %s", c.Timeout, maxShutdownTimeout)
	}
	return nil
}
