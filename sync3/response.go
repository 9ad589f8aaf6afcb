package sync3

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Response is the decoded body of a sliding sync long-poll reply.
type Response struct {
	Pos        string                     `json:"pos"`
	TxnID      string                     `json:"txn_id,omitempty"`
	Lists      []ListResponse             `json:"lists"`
	Rooms      map[string]RoomData        `json:"rooms"`
	Extensions map[string]json.RawMessage `json:"extensions"`
}

// ListResponse is one list's slice of a Response: the server's total joined
// count for that list, plus the ops to replay against its index map.
type ListResponse struct {
	Count int64        `json:"count"`
	Ops   []ResponseOp `json:"ops,omitempty"`
}

// RoomData is the opaque-beyond-room-id payload the server attaches to a
// room_id key under "rooms". required_state and timeline default to empty
// sequences when the server omits them (see Response processing in the
// engine).
type RoomData struct {
	Name              string            `json:"name,omitempty"`
	RequiredState     []json.RawMessage `json:"required_state,omitempty"`
	Timeline          []json.RawMessage `json:"timeline,omitempty"`
	NotificationCount *int64            `json:"notification_count,omitempty"`
	HighlightCount    *int64            `json:"highlight_count,omitempty"`
	InviteState       []json.RawMessage `json:"invite_state,omitempty"`
	Initial           bool              `json:"initial,omitempty"`
	Limited           bool              `json:"limited,omitempty"`
	IsDM              bool              `json:"is_dm,omitempty"`
	PrevBatch         string            `json:"prev_batch,omitempty"`
}

// ResponseOp is either an OpSingle ({op, index, room_id}) or an OpRange
// ({op, range, room_ids}) — see UnmarshalJSON on ListResponse, which probes
// each raw op for a "range" key to decide which shape to decode into,
// mirroring how the wire format itself disambiguates them.
type ResponseOp interface {
	Op() string
}

// OpSingle carries the DELETE and INSERT ops.
type OpSingle struct {
	Operation string `json:"op"`
	Index     *int64 `json:"index,omitempty"` // 0 is valid, hence *int64
	RoomID    string `json:"room_id,omitempty"`
}

func (o *OpSingle) Op() string { return o.Operation }

// OpRange carries the INVALIDATE and SYNC ops.
type OpRange struct {
	Operation string   `json:"op"`
	Range     [2]int64 `json:"range"`
	RoomIDs   []string `json:"room_ids,omitempty"`
}

func (o *OpRange) Op() string { return o.Operation }

// UnmarshalJSON dynamically decodes each op into the right concrete type by
// probing for a "range" field before committing to a struct shape.
func (l *ListResponse) UnmarshalJSON(b []byte) error {
	var tmp struct {
		Count int64             `json:"count"`
		Ops   []json.RawMessage `json:"ops"`
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	l.Count = tmp.Count
	l.Ops = make([]ResponseOp, 0, len(tmp.Ops))
	for _, raw := range tmp.Ops {
		if gjson.GetBytes(raw, "range").Exists() {
			var o OpRange
			if err := json.Unmarshal(raw, &o); err != nil {
				return err
			}
			l.Ops = append(l.Ops, &o)
		} else {
			var o OpSingle
			if err := json.Unmarshal(raw, &o); err != nil {
				return err
			}
			l.Ops = append(l.Ops, &o)
		}
	}
	return nil
}
