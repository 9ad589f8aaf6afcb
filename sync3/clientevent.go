package sync3

import (
	"encoding/json"

	"github.com/matrix-org/gomatrixserverlib"
)

// DecodeClientEvents decodes a slice of raw timeline/state/invite_state
// events (as carried on RoomData) into gomatrixserverlib.ClientEvent, the
// same typed representation the rest of the Matrix Go ecosystem uses for
// client-facing event JSON. Callers that only need to forward events
// untouched (e.g. to a UI's own JSON decoder) can keep using the raw
// json.RawMessage slices directly; this is offered for callers that want to
// inspect type/sender/content without hand-rolling the decode.
func DecodeClientEvents(raw []json.RawMessage) ([]gomatrixserverlib.ClientEvent, error) {
	out := make([]gomatrixserverlib.ClientEvent, 0, len(raw))
	for _, r := range raw {
		var ev gomatrixserverlib.ClientEvent
		if err := json.Unmarshal(r, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
