// Package client is the authenticated request pipeline. It attaches the session's
// bearer token to every backend call, refreshes the token once on a 401 answer, and
// forces a logout when the session cannot be recovered.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const refreshPath = "/auth/refresh-token"

// TokenStore is the part of the session the pipeline needs. The generation
// identifies one login: Replace and Expire act only on the generation they name.
type TokenStore interface {
	Current() (token string, generation uint64)
	Replace(ctx context.Context, generation uint64, token string) error
	Expire(ctx context.Context, generation uint64) (bool, error)
}

// Client sends requests to the backend API on behalf of the current session.
type Client struct {
	http    *http.Client
	baseURL string
	session TokenStore
	logger  *slog.Logger

	refreshGroup singleflight.Group

	refreshCounter metric.Int64Counter
	logoutCounter  metric.Int64Counter
}

// New creates a pipeline bound to baseURL (e.g. http://localhost:9193/api/v1).
func New(httpClient *http.Client, baseURL string, session TokenStore, logger *slog.Logger) *Client {
	meter := otel.Meter("storefront-client")
	refreshCounter, err := meter.Int64Counter("storefront_token_refreshes", metric.WithDescription("Total number of access token refresh attempts"))
	if err != nil {
		panic(fmt.Sprintf("failed to create storefront_token_refreshes counter: %v", err))
	}
	logoutCounter, err := meter.Int64Counter("storefront_forced_logouts", metric.WithDescription("Total number of forced logouts"))
	if err != nil {
		panic(fmt.Sprintf("failed to create storefront_forced_logouts counter: %v", err))
	}
	return &Client{
		http:           httpClient,
		baseURL:        baseURL,
		session:        session,
		logger:         logger.With("component", "client"),
		refreshCounter: refreshCounter,
		logoutCounter:  logoutCounter,
	}
}

// Send issues req with the current bearer token. A 401 answer triggers one token refresh
// and one retry of the same request. A second 401, or a failed refresh, logs the session
// out and returns ErrUnauthenticated. Any other status is returned unchanged.
//
// A session that ends while the request is in flight is never revived: the refreshed
// token is dropped, the request is not retried and ErrUnauthenticated is returned.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	p, err := newPending(req)
	if err != nil {
		return nil, err
	}
	for {
		var token string
		var generation uint64
		if !req.Public {
			token, generation = c.session.Current()
		}
		resp, err := c.roundTrip(ctx, p, token)
		if err != nil {
			return nil, err
		}
		if resp.Status != http.StatusUnauthorized || req.Public {
			return resp, nil
		}
		if token == "" {
			return nil, fmt.Errorf("%s: no session: %w", req, sferrors.ErrUnauthenticated)
		}
		if p.retried {
			c.logger.WarnContext(ctx, "request rejected after token refresh", "request", req.String())
			return nil, c.forceLogout(ctx, generation, fmt.Errorf("%s: %w", req, sferrors.ErrUnauthenticated))
		}
		if _, err := c.Refresh(ctx, generation); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, sferrors.ErrSessionEnded) {
				return nil, fmt.Errorf("%s: %w: %w", req, sferrors.ErrUnauthenticated, err)
			}
			return nil, c.forceLogout(ctx, generation, fmt.Errorf("%s: %w: %w", req, sferrors.ErrUnauthenticated, err))
		}
		if _, current := c.session.Current(); current != generation {
			return nil, fmt.Errorf("%s: %w: %w", req, sferrors.ErrSessionEnded, sferrors.ErrUnauthenticated)
		}
		p.retried = true
	}
}

// Do sends req and decodes the "data" member of the backend envelope into out.
// Statuses of 400 and above come back as *errors.BackendError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	return c.do(ctx, req, out, true)
}

// DoRaw is Do for endpoints that answer without the envelope.
func (c *Client) DoRaw(ctx context.Context, req Request, out any) error {
	return c.do(ctx, req, out, false)
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, req Request, out any, enveloped bool) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp.Status >= http.StatusBadRequest {
		return fmt.Errorf("%s: %w", req, backendError(resp))
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	payload := resp.Body
	if enveloped {
		var env envelope
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", req, err)
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		payload = env.Data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", req, err)
	}
	return nil
}

func backendError(resp *Response) *sferrors.BackendError {
	var env envelope
	_ = json.Unmarshal(resp.Body, &env)
	return &sferrors.BackendError{Status: resp.Status, Message: env.Message}
}

func (c *Client) roundTrip(ctx context.Context, p *pending, token string) (*Response, error) {
	httpReq, err := p.build(ctx, c.baseURL, token)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "sending request", "request", p.req.String(), "retried", p.retried)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w: %w", p.req, sferrors.ErrNetwork, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: failed to read response: %w: %w", p.req, sferrors.ErrNetwork, err)
	}
	// The caller gave up while the answer was in flight. A read is stale and dropped;
	// a write already took effect on the backend, so its answer is still returned.
	if ctxErr := ctx.Err(); ctxErr != nil && safeMethod(p.req.Method) {
		return nil, ctxErr
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func safeMethod(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// forceLogout ends the session of the given generation. A session started since
// then belongs to someone else and is left alone.
func (c *Client) forceLogout(ctx context.Context, generation uint64, cause error) error {
	ended, err := c.session.Expire(context.WithoutCancel(ctx), generation)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session on forced logout", "error", err)
	}
	if ended {
		c.logoutCounter.Add(ctx, 1)
		c.logger.WarnContext(ctx, "forced logout", "error", cause)
	}
	return cause
}
