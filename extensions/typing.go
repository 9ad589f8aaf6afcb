package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

type typingRequest struct {
	Enabled bool `json:"enabled"`
}

type typingResponse struct {
	Rooms map[string]json.RawMessage `json:"rooms,omitempty"`
}

// TypingExtension surfaces m.typing ephemeral events per room. It dispatches
// PostProcess: a caller renders typing indicators against rooms it has
// already received as RoomData events.
type TypingExtension struct {
	mu      sync.Mutex
	enabled bool
	rooms   map[string]json.RawMessage
}

// NewTypingExtension returns an extension that requests typing notifications
// once enabled.
func NewTypingExtension(enabled bool) *TypingExtension {
	return &TypingExtension{enabled: enabled, rooms: make(map[string]json.RawMessage)}
}

func (t *TypingExtension) Name() string { return "typing" }

func (t *TypingExtension) When() sync3.Phase { return sync3.PostProcess }

func (t *TypingExtension) OnRequest(isInitial bool) interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return nil
	}
	return typingRequest{Enabled: true}
}

func (t *TypingExtension) OnResponse(data json.RawMessage) error {
	var resp typingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for roomID, ev := range resp.Rooms {
		t.rooms[roomID] = ev
	}
	return nil
}

// Typing returns the most recent raw m.typing event for roomID, if any has
// been reported.
func (t *TypingExtension) Typing(roomID string) (json.RawMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.rooms[roomID]
	return ev, ok
}
