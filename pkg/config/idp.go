package config

import (
	"fmt"
	"strings"
	"time"
)

// IdP configures signature verification of access tokens.
// With an empty JwksURL tokens are decoded without verification,
// which matches what a browser client can do on its own.
type IdP struct {
	JwksURL     string        `koanf:"jwksurl"`
	Issuer      string        `koanf:"issuer"`
	MinInterval time.Duration `koanf:"mininterval"`
}

// Enabled reports whether JWKS verification is configured.
func (c *IdP) Enabled() bool {
	return c.JwksURL != ""
}

// String returns a string representation of the IdP configuration.
func (c *IdP) String() string {
	var b strings.Builder
	b.WriteString("\n--- IdP ---\n")
	b.WriteString(fmt.Sprintf("  jwksurl: %s\n", c.JwksURL))
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  mininterval: %s\n", c.MinInterval))
	return b.String()
}

func (c *IdP) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.MinInterval <= 0 {
		return fmt.Errorf("IdP minimum interval must be greater than zero")
	}
	return nil
}
