package gateway

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 503 when the store does not answer a ping.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			err := g.store.Ping(ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Store = err.Error()
			} else {
				resp.Store = "ok"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
