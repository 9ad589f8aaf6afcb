// Package debugserver exposes read-only introspection endpoints for a
// running SyncEngine, modelled on the way the upstream proxy wires its own
// HTTP routes with gorilla/mux and an hlog access-log middleware chain.
package debugserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

// chain applies middleware in the order given, innermost last, matching the
// upstream proxy's server type.
type chain struct {
	mw    []func(http.Handler) http.Handler
	final http.Handler
}

func (c *chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := c.final
	for i := range c.mw {
		h = c.mw[len(c.mw)-1-i](h)
	}
	h.ServeHTTP(w, r)
}

// listDump is the JSON shape returned by /debug/lists for a single list.
type listDump struct {
	Index       int                      `json:"index"`
	JoinedCount int64                    `json:"joined_count"`
	Params      *sync3.RequestListParams `json:"params"`
	RoomIDs     map[int64]string         `json:"room_index_to_room_id"`
}

// Handler builds an http.Handler exposing /debug/lists, /debug/txns and
// /metrics for engine. It is intentionally read-only: nothing served here
// can mutate engine state.
func Handler(engine *sync3.SyncEngine) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/debug/lists", func(w http.ResponseWriter, req *http.Request) {
		n := engine.ListLength()
		dumps := make([]listDump, 0, n)
		for i := 0; i < n; i++ {
			data := engine.GetListData(i)
			params := engine.GetList(i)
			if data == nil || params == nil {
				continue
			}
			dumps = append(dumps, listDump{
				Index:       i,
				JoinedCount: data.JoinedCount,
				Params:      params,
				RoomIDs:     data.RoomIndexToRoomID,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dumps)
	})

	r.HandleFunc("/debug/txns", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Outstanding int `json:"outstanding"`
		}{engine.OutstandingTxns()})
	})

	r.Handle("/metrics", promhttp.Handler())

	return &chain{
		mw: []func(http.Handler) http.Handler{
			hlog.NewHandler(*internal.Logger()),
			hlog.AccessHandler(func(req *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(req).Info().
					Str("method", req.Method).
					Int("status", status).
					Int("size", size).
					Dur("duration", duration).
					Str("path", req.URL.Path).
					Msg("")
			}),
		},
		final: r,
	}
}
