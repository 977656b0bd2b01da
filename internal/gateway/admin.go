package gateway

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
)

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handleListFragments lists persisted fragments. Query parameters:
// conversation_id scopes the listing, tier selects "short" or "long"
// (both when empty).
func (g *Gateway) handleListFragments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.memory == nil {
			writeError(w, http.StatusServiceUnavailable, "memory not available")
			return
		}
		conv := r.URL.Query().Get("conversation_id")
		tier := memory.Tier(r.URL.Query().Get("tier"))
		if tier != "" && tier != memory.TierShort && tier != memory.TierLong {
			writeError(w, http.StatusBadRequest, "tier must be short or long")
			return
		}

		router := g.memory.Router()
		out := []memory.Fragment{}
		if tier == "" || tier == memory.TierShort {
			fs, err := router.Short().List(r.Context(), conv)
			if err != nil {
				g.logger.Error("gateway: listing short store", "error", err)
				writeError(w, http.StatusBadGateway, "short store unavailable")
				return
			}
			out = append(out, fs...)
		}
		if tier == "" || tier == memory.TierLong {
			fs, err := router.Long().List(r.Context(), conv)
			if err != nil {
				g.logger.Error("gateway: listing long store", "error", err)
				writeError(w, http.StatusBadGateway, "long store unavailable")
				return
			}
			out = append(out, fs...)
		}

		slices.SortStableFunc(out, func(a, b memory.Fragment) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		writeJSON(w, http.StatusOK, out)
	}
}

// handleListIndices lists the long-form store's indices.
func (g *Gateway) handleListIndices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.memory == nil {
			writeError(w, http.StatusServiceUnavailable, "memory not available")
			return
		}
		idx, err := g.memory.Router().Long().Indices(r.Context())
		if err != nil {
			g.logger.Error("gateway: listing indices", "error", err)
			writeError(w, http.StatusBadGateway, "long store unavailable")
			return
		}
		if idx == nil {
			idx = []string{}
		}
		writeJSON(w, http.StatusOK, idx)
	}
}

// handleUsage returns the usage map, most recently used first.
func (g *Gateway) handleUsage() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.memory == nil {
			writeError(w, http.StatusServiceUnavailable, "memory not available")
			return
		}
		writeJSON(w, http.StatusOK, g.memory.Usage().Snapshot())
	}
}

// handleListLanes lists the live dispatch lanes with their queue depth.
func (g *Gateway) handleListLanes() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		lanes := []dispatch.LaneInfo{}
		if g.lanes != nil {
			lanes = append(lanes, g.lanes.Lanes()...)
		}
		writeJSON(w, http.StatusOK, lanes)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules.
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
