package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validator interface {
	Validate() error
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         validator
		expectError bool
		check       func(t *testing.T, cfg validator)
	}{
		{
			name: "Success - log level is normalized",
			cfg:  &LogConfig{Level: " DEBUG "},
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, "debug", cfg.(*LogConfig).Level)
			},
		},
		{
			name: "Success - empty log level defaults to info",
			cfg:  &LogConfig{},
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, "info", cfg.(*LogConfig).Level)
			},
		},
		{
			name:        "Failure - unknown log level",
			cfg:         &LogConfig{Level: "verbose"},
			expectError: true,
		},
		{
			name: "Success - shutdown timeout defaults",
			cfg:  &ShutdownConfig{},
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, 5*time.Second, cfg.(*ShutdownConfig).Timeout)
			},
		},
		{
			name:        "Failure - negative shutdown timeout",
			cfg:         &ShutdownConfig{Timeout: -time.Second},
			expectError: true,
		},
		{
			name:        "Failure - shutdown timeout above a minute",
			cfg:         &ShutdownConfig{Timeout: 2 * time.Minute},
			expectError: true,
		},
		{
			name: "Success - disabled pprof ignores address",
			cfg:  &PProfConfig{Addr: "nonsense"},
		},
		{
			name: "Success - enabled pprof defaults to loopback",
			cfg:  &PProfConfig{Enabled: true},
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, "localhost:6060", cfg.(*PProfConfig).Addr)
			},
		},
		{
			name:        "Failure - pprof address without port",
			cfg:         &PProfConfig{Enabled: true, Addr: "localhost"},
			expectError: true,
		},
		{
			name: "Success - nats disabled",
			cfg:  &NATSConfig{},
		},
		{
			name: "Success - nats cluster with default timeout",
			cfg:  &NATSConfig{Url: "nats://a:4222, tls://b:4222"},
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, 5*time.Second, cfg.(*NATSConfig).Timeout)
			},
		},
		{
			name:        "Failure - nats http url",
			cfg:         &NATSConfig{Url: "http://localhost:4222"},
			expectError: true,
		},
		{
			name:        "Failure - nats url without host",
			cfg:         &NATSConfig{Url: "localhost"},
			expectError: true,
		},
		{
			name: "Success - telemetry defaults",
			cfg:  &TelemetryConfig{Traces: TracesConfig{OtlpHttp: OtlpHttpConfig{Endpoint: "otel-collector:4318"}}},
			check: func(t *testing.T, cfg validator) {
				tc := cfg.(*TelemetryConfig)
				assert.Equal(t, 1.0, tc.Traces.SampleRatio)
				assert.Equal(t, 10*time.Second, tc.Traces.OtlpHttp.Timeout)
			},
		},
		{
			name:        "Failure - telemetry endpoint with scheme",
			cfg:         &TelemetryConfig{Traces: TracesConfig{OtlpHttp: OtlpHttpConfig{Endpoint: "http://otel-collector:4318"}}},
			expectError: true,
		},
		{
			name:        "Failure - telemetry sample ratio above one",
			cfg:         &TelemetryConfig{Traces: TracesConfig{SampleRatio: 1.5}},
			expectError: true,
		},
		{
			name: "Success - http limits default",
			cfg:  &HTTPConfig{Port: 8080},
			check: func(t *testing.T, cfg validator) {
				hc := cfg.(*HTTPConfig)
				assert.Equal(t, 1<<20, hc.MaxHeaderBytes)
				assert.Equal(t, 30*time.Second, hc.Timeout.Write)
				assert.Equal(t, 5*time.Second, hc.Timeout.ReadHeader)
			},
		},
		{
			name:        "Failure - http port out of range",
			cfg:         &HTTPConfig{Port: 70000},
			expectError: true,
		},
		{
			name: "Success - payment disabled needs nothing",
			cfg:  &PaymentConfig{},
		},
		{
			name:        "Failure - payment without publishable key",
			cfg:         &PaymentConfig{ProcessorURL: "https://api.stripe.com"},
			expectError: true,
		},
		{
			name:        "Failure - unknown session store",
			cfg:         &SessionConfig{Store: "sqlite"},
			expectError: true,
		},
		{
			name: "Success - redis session store gets a default key",
			cfg: func() *SessionConfig {
				c := &SessionConfig{Store: SessionStoreRedis}
				c.Redis.Addr = "localhost:6379"
				return c
			}(),
			check: func(t *testing.T, cfg validator) {
				assert.Equal(t, "storefront:session", cfg.(*SessionConfig).Redis.Key)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			err := tc.cfg.Validate()

			// then
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, tc.cfg)
			}
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "****cdef", mask("pk_test_abcdef"))
}
