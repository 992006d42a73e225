package httpx

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/abgdnv/storefront/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns the client used for backend calls. It carries a cookie jar so the
// refresh-token session cookie travels with credentialed requests, and the configured
// timeout as the hard ceiling on every call.
func NewClient(name string, backend config.BackendConfig, resilience config.ResilienceConfig) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(NewTransport(http.DefaultTransport, name, resilience)),
		Jar:       jar,
		Timeout:   backend.Timeout,
	}, nil
}
