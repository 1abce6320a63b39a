package queue

import (
	"context"
	"net/http"
	"time"
)

// HTTPProbe reports online when a HEAD request to url gets any response
// below 500 within timeout.
func HTTPProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// StaticProbe always reports the given state.
func StaticProbe(online bool) Probe {
	return func(context.Context) bool { return online }
}
