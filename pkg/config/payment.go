package config

import (
	"fmt"
	"strings"
	"time"
)

// PaymentConfig configures the external card payment processor.
type PaymentConfig struct {
	ProcessorURL   string        `koanf:"processorurl"`
	PublishableKey string        `koanf:"publishablekey"`
	Currency       string        `koanf:"currency"`
	Timeout        time.Duration `koanf:"timeout"`
}

// String returns a string representation of the payment configuration.
func (c *PaymentConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Payment ---\n")
	b.WriteString(fmt.Sprintf("  processorurl: %s\n", c.ProcessorURL))
	b.WriteString(fmt.Sprintf("  publishablekey: %s\n", mask(c.PublishableKey)))
	b.WriteString(fmt.Sprintf("  currency: %s\n", c.Currency))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

// Enabled reports whether card payments are configured. Cash on delivery works without.
func (c *PaymentConfig) Enabled() bool {
	return c.ProcessorURL != ""
}

func (c *PaymentConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.PublishableKey == "" {
		return fmt.Errorf("payment publishable key is not configured")
	}
	if c.Currency == "" {
		c.Currency = "inr"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultBackendTimeout
	}
	return nil
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
