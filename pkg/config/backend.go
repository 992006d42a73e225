package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultBackendTimeout = 10 * time.Second

// BackendConfig points the client at the storefront REST API.
// Timeout is the hard ceiling applied to every call.
type BackendConfig struct {
	BaseURL string        `koanf:"baseurl"`
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the backend configuration.
func (c *BackendConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Backend ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *BackendConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("backend base URL is not configured")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL is invalid: %s", c.BaseURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultBackendTimeout
	}
	return nil
}
