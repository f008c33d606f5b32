package eduapi

import "net/http"

// executeMiddleware composes the configured stages into a single pipeline
// around the base transport. User middleware wraps the credential stage, so
// the bearer header is attached last, immediately before the wire.
func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	current := RoundTripperFunc(c.httpClient.Do)

	stages := make([]Middleware, 0, len(c.middleware)+1)
	stages = append(stages, c.middleware...)
	stages = append(stages, bearerMiddleware(c.creds))

	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return stage(r, next)
		})
	}

	return current.RoundTrip(req)
}

// bearerMiddleware attaches the current access token. It re-reads the store
// on every attempt so a refreshed credential is picked up by the retried
// request.
func bearerMiddleware(store *CredentialStore) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if store != nil {
			if cred, ok := store.Get(); ok && cred.AccessToken != "" {
				req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
			}
		}
		return next.RoundTrip(req)
	}
}
