package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

// accountDataRequest is the wire shape of the account_data extension's
// request object. RoomAccountDataTypes is keyed by list index, matching the
// server's per-list filtering of which account data event types to include.
type accountDataRequest struct {
	Enabled                bool             `json:"enabled"`
	GlobalAccountDataTypes []string         `json:"global_account_data_types,omitempty"`
	RoomAccountDataTypes   map[int][]string `json:"room_account_data_types,omitempty"`
}

type accountDataResponse struct {
	Global []json.RawMessage            `json:"global,omitempty"`
	Rooms  map[string][]json.RawMessage `json:"rooms,omitempty"`
}

// AccountDataExtension surfaces global and per-room account data events. It
// dispatches PostProcess since account data (e.g. read markers, tag
// ordering) is naturally interpreted once the rooms it refers to have
// already been emitted as RoomData events.
type AccountDataExtension struct {
	mu          sync.Mutex
	enabled     bool
	globalTypes []string
	roomTypes   map[int][]string
	global      []json.RawMessage
	rooms       map[string][]json.RawMessage
}

// NewAccountDataExtension returns an extension that requests account data
// once enabled, optionally filtered by event type.
func NewAccountDataExtension(enabled bool, globalTypes []string, roomTypes map[int][]string) *AccountDataExtension {
	return &AccountDataExtension{
		enabled:     enabled,
		globalTypes: globalTypes,
		roomTypes:   roomTypes,
		rooms:       make(map[string][]json.RawMessage),
	}
}

func (a *AccountDataExtension) Name() string { return "account_data" }

func (a *AccountDataExtension) When() sync3.Phase { return sync3.PostProcess }

func (a *AccountDataExtension) OnRequest(isInitial bool) interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return nil
	}
	return accountDataRequest{
		Enabled:                true,
		GlobalAccountDataTypes: a.globalTypes,
		RoomAccountDataTypes:   a.roomTypes,
	}
}

func (a *AccountDataExtension) OnResponse(data json.RawMessage) error {
	var resp accountDataResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.global = append(a.global, resp.Global...)
	for roomID, events := range resp.Rooms {
		a.rooms[roomID] = append(a.rooms[roomID], events...)
	}
	return nil
}

// TakeGlobal returns and clears the buffered global account data events.
func (a *AccountDataExtension) TakeGlobal() []json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := a.global
	a.global = nil
	return events
}

// TakeRoom returns and clears the buffered per-room account data events for
// roomID.
func (a *AccountDataExtension) TakeRoom(roomID string) []json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := a.rooms[roomID]
	delete(a.rooms, roomID)
	return events
}
