package sync3

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// RequestListParams is the full set of parameters a caller can set on a
// SlidingList via replace(). Ranges is non-sticky (see SliceRanges); every
// other field is sticky: the server retains it across poll iterations, so it
// is only retransmitted when it changes.
type RequestListParams struct {
	Ranges          SliceRanges     `json:"ranges"`
	Sort            []string        `json:"sort,omitempty"`
	Filters         *RequestFilters `json:"filters,omitempty"`
	TimelineLimit   int             `json:"timeline_limit,omitempty"`
	RequiredState   [][2]string     `json:"required_state,omitempty"`
	SlowGetAllRooms bool            `json:"slow_get_all_rooms,omitempty"`
}

// Clone returns a deep copy, used both when handing a snapshot to a caller
// (get_list) and when composing a request body, so the canonical copy held
// by the SlidingList is never aliased by either.
func (p RequestListParams) Clone() RequestListParams {
	cp := p
	cp.Ranges = p.Ranges.Clone()
	if p.Sort != nil {
		cp.Sort = append([]string(nil), p.Sort...)
	}
	if p.Filters != nil {
		f := *p.Filters
		cp.Filters = &f
	}
	if p.RequiredState != nil {
		cp.RequiredState = append([][2]string(nil), p.RequiredState...)
	}
	return cp
}

// RequestFilters holds the recognised filter fields a list may set. All
// fields are optional; a nil *bool means "not specified" rather than false.
type RequestFilters struct {
	IsDM         *bool    `json:"is_dm,omitempty"`
	IsEncrypted  *bool    `json:"is_encrypted,omitempty"`
	IsInvite     *bool    `json:"is_invite,omitempty"`
	IsTombstoned *bool    `json:"is_tombstoned,omitempty"`
	RoomNameLike string   `json:"room_name_like,omitempty"`
	RoomTypes    []string `json:"room_types,omitempty"`
	NotRoomTypes []string `json:"not_room_types,omitempty"`
	Spaces       []string `json:"spaces,omitempty"`
}

// RoomSubscription is the subscription params template applied to every
// room a caller subscribes to individually (as opposed to via a list).
type RoomSubscription struct {
	RequiredState [][2]string `json:"required_state,omitempty"`
	TimelineLimit int         `json:"timeline_limit,omitempty"`
}

// RequestListFragment is what SlidingList.Snapshot actually puts on the
// wire: either the full sticky param set (first transmission, or any
// transmission after replace()) or just the non-sticky ranges.
type RequestListFragment struct {
	Ranges          SliceRanges     `json:"ranges"`
	Sort            []string        `json:"sort,omitempty"`
	Filters         *RequestFilters `json:"filters,omitempty"`
	TimelineLimit   int             `json:"timeline_limit,omitempty"`
	RequiredState   [][2]string     `json:"required_state,omitempty"`
	SlowGetAllRooms bool            `json:"slow_get_all_rooms,omitempty"`
}

// Request is the body of a sliding sync long-poll. Pos/TimeoutMSecs/
// ClientTimeoutMSecs are carried alongside the body fields for the Transport
// to place as it sees fit (query parameters in the reference HTTP
// transport); they are never part of the JSON body itself.
type Request struct {
	Lists             []RequestListFragment      `json:"lists"`
	RoomSubscriptions map[string]RoomSubscription `json:"room_subscriptions,omitempty"`
	UnsubscribeRooms  []string                    `json:"unsubscribe_rooms,omitempty"`
	Extensions        map[string]json.RawMessage  `json:"extensions,omitempty"`
	TxnID             string                      `json:"txn_id,omitempty"`

	Pos                string `json:"-"`
	TimeoutMSecs       int    `json:"-"`
	ClientTimeoutMSecs int    `json:"-"`
}

// requestAlias has the same fields as Request but none of its methods, so
// marshalling it can't recurse into Request.MarshalJSON.
type requestAlias Request

// MarshalJSON marshals every field except Extensions the ordinary way, then
// patches each extension's raw payload into the body one key at a time with
// sjson.SetRawBytes, the same "patch one field into an already-encoded
// event" technique the proxy uses to stamp unsigned.transaction_id onto
// timeline events (sync3/caches/user.go). Patching per-extension avoids
// forcing every Extension implementation to agree on a single Go type for
// the request-side "extensions" object; each just returns its own
// json.RawMessage (or any value encoding/json can marshal) from OnRequest.
func (r *Request) MarshalJSON() ([]byte, error) {
	alias := requestAlias(*r)
	alias.Extensions = nil
	body, err := json.Marshal(alias)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	for name, raw := range r.Extensions {
		body, err = sjson.SetRawBytes(body, "extensions."+name, raw)
		if err != nil {
			return nil, fmt.Errorf("patch extension %q into request body: %w", name, err)
		}
	}
	return body, nil
}
