// Package eduapi is the resilient API access layer used by the kelaskita
// web clients. It wraps the standard net/http client with the reliability
// features an unreliable backend demands:
//
//   - Bearer credential attachment with one-shot refresh on 401
//   - Single-flight token refresh (concurrent 401s share one refresh call)
//   - Bounded retries with exponential backoff + optional jitter
//   - Circuit breakers per dependency (general API calls and auth calls)
//   - Normalized error taxonomy and exactly one user notification per request
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Explicit, observable retry loop (no hidden recursive continuations)
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable storage / metrics
//
// Typical usage:
//
//	store := eduapi.NewCredentialStore(eduapi.NewFileStorage("session.json"))
//	client := eduapi.New("https://api.example.com",
//	    eduapi.WithCredentialStore(store),
//	    eduapi.WithNotifier(eduapi.NotifierFunc(showToast)),
//	    eduapi.WithOnSessionExpired(redirectToLogin),
//	    eduapi.WithMetrics(),
//	)
//	body, err := client.Get(ctx, "/lessons/42")
//
// Request and response bodies are opaque to this package; callers decode
// them with GetJSON or their own unmarshalling. The library avoids
// opinionated logging: provide a Logger (e.g. via WithZerolog) + enable
// debug flags selectively (WithDebug / WithDebugConfig) for insight
// without noise.
package eduapi
