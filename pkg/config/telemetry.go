package config

import (
	"fmt"
	"strings"
	"time"
)

const defaultTelemetryTimeout = 10 * time.Second

// TelemetryConfig configures trace export. Metrics are always served on /metrics.
type TelemetryConfig struct {
	Traces TracesConfig `koanf:"traces"`
}

type TracesConfig struct {
	OtlpHttp OtlpHttpConfig `koanf:"otlphttp"`
	// SampleRatio is the share of root spans kept, in (0, 1]. Child spans follow their parent.
	SampleRatio float64 `koanf:"sampleratio"`
}

// OtlpHttpConfig points at the collector. Endpoint is host:port, without a scheme.
type OtlpHttpConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Insecure bool          `koanf:"insecure"`
	Timeout  time.Duration `koanf:"timeout"`
}

// TracingEnabled reports whether an OTLP endpoint is configured.
func (c *TelemetryConfig) TracingEnabled() bool {
	return c.Traces.OtlpHttp.Endpoint != ""
}

// String returns a string representation of the TelemetryConfig.
func (c *TelemetryConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Telemetry ---\n")
	b.WriteString(fmt.Sprintf("  traces.otlphttp.endpoint: %s\n", c.Traces.OtlpHttp.Endpoint))
	b.WriteString(fmt.Sprintf("  traces.otlphttp.insecure: %v\n", c.Traces.OtlpHttp.Insecure))
	b.WriteString(fmt.Sprintf("  traces.otlphttp.timeout: %v\n", c.Traces.OtlpHttp.Timeout))
	b.WriteString(fmt.Sprintf("  traces.sampleratio: %v\n", c.Traces.SampleRatio))
	return b.String()
}

func (c *TelemetryConfig) Validate() error {
	if c.Traces.SampleRatio == 0 {
		c.Traces.SampleRatio = 1
	}
	if c.Traces.SampleRatio < 0 || c.Traces.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be in (0, 1]: %v", c.Traces.SampleRatio)
	}
	if !c.TracingEnabled() {
		return nil
	}
	if strings.Contains(c.Traces.OtlpHttp.Endpoint, "://") {
		return fmt.Errorf("telemetry endpoint must be host:port without a scheme: %s", c.Traces.OtlpHttp.Endpoint)
	}
	if c.Traces.OtlpHttp.Timeout < 0 {
		return fmt.Errorf("telemetry timeout cannot be negative: %v", c.Traces.OtlpHttp.Timeout)
	}
	if c.Traces.OtlpHttp.Timeout == 0 {
		c.Traces.OtlpHttp.Timeout = defaultTelemetryTimeout
	}
	return nil
}
