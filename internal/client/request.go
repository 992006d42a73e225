package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/abgdnv/storefront/pkg/web"
	"github.com/google/uuid"
)

// maxBodyBytes caps how much of a backend answer is read into memory.
const maxBodyBytes = 10 << 20

// Request describes one backend call. Path is relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// Public requests carry no bearer token and are never refreshed (login, refresh itself).
	Public bool
}

func (r Request) String() string {
	return r.Method + " " + r.Path
}

// Response is a fully read backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// pending tracks one Send call across its attempts.
type pending struct {
	req     Request
	payload []byte
	retried bool
}

func newPending(req Request) (*pending, error) {
	p := &pending{req: req}
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", req, err)
		}
		p.payload = data
	}
	return p, nil
}

// build creates a fresh *http.Request for one attempt.
func (p *pending) build(ctx context.Context, baseURL, token string) (*http.Request, error) {
	target := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(p.req.Path, "/")
	if len(p.req.Query) > 0 {
		target += "?" + p.req.Query.Encode()
	}
	var body io.Reader
	if p.payload != nil {
		body = bytes.NewReader(p.payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, p.req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request %s: %w", p.req, err)
	}
	for k, values := range p.req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	reqID, ok := web.GetRequestID(ctx)
	if !ok {
		reqID = uuid.NewString()
	}
	httpReq.Header.Set(web.XRequestID, reqID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}
