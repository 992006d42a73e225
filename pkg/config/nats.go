package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultNATSTimeout = 5 * time.Second

// NATSConfig configures the order event publisher. An empty Url disables it
// and order events are only logged.
type NATSConfig struct {
	Url     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether a NATS server is configured.
func (c *NATSConfig) Enabled() bool {
	return c.Url != ""
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", c.Url))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	// a comma separated list of servers is accepted by nats.Connect
	for _, server := range strings.Split(c.Url, ",") {
		u, err := url.Parse(strings.TrimSpace(server))
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid nats url: %q", server)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("unsupported nats url scheme %q in %q", u.Scheme, server)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("nats dial timeout cannot be negative: %s", c.Timeout)
	}
	if c.Timeout == 0 {
		c.Timeout = defaultNATSTimeout
	}
	return nil
}
