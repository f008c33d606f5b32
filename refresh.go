package eduapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// refreshRequest is the body sent to the token refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse mirrors the refresh endpoint contract; the backend issues
// either an id_token or an access_token depending on the identity provider.
type refreshResponse struct {
	Tokens struct {
		IDToken     string `json:"id_token"`
		AccessToken string `json:"access_token"`
	} `json:"tokens"`
}

// refreshCredential exchanges the refresh token for a new access token and
// stores it. Concurrent callers are coalesced: while a refresh is in flight
// every other 401 awaits the same result instead of issuing its own refresh
// call. The auth circuit breaker guards the exchange.
func (c *Client) refreshCredential(ctx context.Context) error {
	_, err, shared := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		cred, ok := c.creds.Get()
		if !ok || cred.RefreshToken == "" {
			return nil, ErrNoCredential
		}

		var accessToken string
		err := c.authBreaker.Execute(ctx, func(ctx context.Context) error {
			token, reqErr := c.requestRefreshedToken(ctx, cred.RefreshToken)
			accessToken = token
			return reqErr
		})
		if c.metrics != nil {
			c.metrics.RecordCircuitBreakerState(c.authBreaker.Name(), c.authBreaker.State())
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			c.metrics.RecordTokenRefresh(outcome)
		}
		if err != nil {
			return nil, err
		}

		if setErr := c.creds.Set(Credential{
			AccessToken:  accessToken,
			RefreshToken: cred.RefreshToken,
		}); setErr != nil {
			return nil, setErr
		}
		return accessToken, nil
	})

	if c.debug != nil && c.debug.Enabled && c.debug.LogRefresh && c.logger != nil {
		if err != nil {
			c.logger.Warn("Token refresh failed", "shared", shared, "error", err.Error())
		} else {
			c.logger.Info("Token refresh succeeded", "shared", shared)
		}
	}
	return err
}

// requestRefreshedToken performs the refresh exchange itself. It bypasses
// the middleware pipeline: the refresh call must not carry the stale bearer
// header, and it must never recurse into the 401 handling.
func (c *Client) requestRefreshedToken(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}

	u := c.baseURL + "/" + trimLeadingSlash(c.refreshPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("eduapi: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("eduapi: read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("eduapi: refresh rejected with status %d", resp.StatusCode)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("eduapi: decode refresh response: %w", err)
	}

	token := parsed.Tokens.IDToken
	if token == "" {
		token = parsed.Tokens.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("eduapi: refresh response carried no token")
	}
	return token, nil
}

func trimLeadingSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}
