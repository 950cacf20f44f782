package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Counters      CountersSnapshot `json:"counters"`
	Evaluators    []string         `json:"evaluators"`
	Scheduler     bool             `json:"scheduler"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
			Evaluators:    []string{},
			Scheduler:     g.cycles != nil,
		}
		if g.counters != nil {
			resp.Counters = g.counters.Snapshot()
		}
		if g.evaluators != nil {
			resp.Evaluators = g.evaluators.Keys()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
