package config

import (
	"strings"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Backend    config.BackendConfig    `koanf:"backend"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Session    config.SessionConfig    `koanf:"session"`
	Payment    config.PaymentConfig    `koanf:"payment"`
	IdP        config.IdP              `koanf:"idp"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Backend.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Session.String())
	b.WriteString(c.Payment.String())
	b.WriteString(c.IdP.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Backend,
		&c.Resilience,
		&c.Session,
		&c.Payment,
		&c.IdP,
		&c.Nats,
		&c.Telemetry,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
