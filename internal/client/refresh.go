package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	sferrors "github.com/abgdnv/storefront/internal/errors"
)

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Data        *struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (r refreshResponse) token() string {
	if r.AccessToken == "" && r.Data != nil {
		return r.Data.AccessToken
	}
	return r.AccessToken
}

// Refresh obtains a new access token with the refresh cookie and stores it in the
// session of the given generation. Concurrent callers of one generation share a single
// in-flight refresh. A session that ended meanwhile fails with ErrSessionEnded, any
// other failure is ErrAuthExpired.
func (c *Client) Refresh(ctx context.Context, generation uint64) (string, error) {
	key := "refresh:" + strconv.FormatUint(generation, 10)
	ch := c.refreshGroup.DoChan(key, func() (any, error) {
		// shared by every waiting caller, so no single caller may cancel it
		return c.refresh(context.WithoutCancel(ctx), generation)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context, generation uint64) (string, error) {
	c.refreshCounter.Add(ctx, 1)
	c.logger.InfoContext(ctx, "refreshing access token")

	resp, err := c.Send(ctx, Request{Method: http.MethodPost, Path: refreshPath, Public: true})
	if err != nil {
		return "", fmt.Errorf("%w: %w", sferrors.ErrAuthExpired, err)
	}
	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("%w: refresh answered %d", sferrors.ErrAuthExpired, resp.Status)
	}
	var body refreshResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%w: failed to decode refresh response: %w", sferrors.ErrAuthExpired, err)
	}
	token := body.token()
	if token == "" {
		return "", fmt.Errorf("%w: refresh returned no token", sferrors.ErrAuthExpired)
	}
	if err := c.session.Replace(ctx, generation, token); err != nil {
		if errors.Is(err, sferrors.ErrSessionEnded) {
			c.logger.InfoContext(ctx, "session ended during token refresh")
			return "", err
		}
		return "", fmt.Errorf("%w: %w", sferrors.ErrAuthExpired, err)
	}
	return token, nil
}
