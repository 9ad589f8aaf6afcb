package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

type receiptsRequest struct {
	Enabled bool `json:"enabled"`
}

type receiptsResponse struct {
	Rooms map[string]json.RawMessage `json:"rooms,omitempty"`
}

// ReceiptsExtension surfaces m.receipt ephemeral events per room. It
// dispatches PostProcess for the same reason as TypingExtension.
type ReceiptsExtension struct {
	mu      sync.Mutex
	enabled bool
	rooms   map[string]json.RawMessage
}

// NewReceiptsExtension returns an extension that requests read receipts once
// enabled.
func NewReceiptsExtension(enabled bool) *ReceiptsExtension {
	return &ReceiptsExtension{enabled: enabled, rooms: make(map[string]json.RawMessage)}
}

func (r *ReceiptsExtension) Name() string { return "receipts" }

func (r *ReceiptsExtension) When() sync3.Phase { return sync3.PostProcess }

func (r *ReceiptsExtension) OnRequest(isInitial bool) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return nil
	}
	return receiptsRequest{Enabled: true}
}

func (r *ReceiptsExtension) OnResponse(data json.RawMessage) error {
	var resp receiptsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, ev := range resp.Rooms {
		r.rooms[roomID] = ev
	}
	return nil
}

// Receipts returns the most recent raw m.receipt event for roomID, if any has
// been reported.
func (r *ReceiptsExtension) Receipts(roomID string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.rooms[roomID]
	return ev, ok
}
