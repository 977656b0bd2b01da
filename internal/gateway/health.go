package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/almond/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string            `json:"status"` // "ok" or "degraded"
	Uptime        string            `json:"uptime"`
	Lanes         int               `json:"lanes"`
	Conversations int               `json:"conversations"`
	Providers     []provider.Status `json:"providers"`
}

// handleHealth returns 200 when every delegate is available and 503 when
// at least one is cooling down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Providers: []provider.Status{},
		}
		if !g.startedAt.IsZero() && g.now != nil {
			resp.Uptime = g.now().Sub(g.startedAt).Truncate(time.Second).String()
		}
		if g.lanes != nil {
			resp.Lanes = g.lanes.LaneCount()
		}
		if g.memory != nil {
			resp.Conversations = len(g.memory.Conversations())
		}
		if g.providers != nil {
			resp.Providers = g.providers.HealthReport()
			for _, p := range resp.Providers {
				if !p.Available {
					resp.Status = "degraded"
					break
				}
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
