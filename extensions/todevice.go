package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

// toDeviceRequest is the wire shape of the to_device extension's request
// object. since is empty on the first request that has the extension
// enabled; thereafter it is always the previous response's next_batch, so
// the server never redelivers a message this client has already consumed.
type toDeviceRequest struct {
	Enabled bool   `json:"enabled"`
	Limit   int    `json:"limit,omitempty"`
	Since   string `json:"since,omitempty"`
}

type toDeviceResponse struct {
	NextBatch string            `json:"next_batch"`
	Events    []json.RawMessage `json:"events,omitempty"`
}

// defaultToDeviceLimit matches the server's own default of 100 messages per
// response.
const defaultToDeviceLimit = 100

// ToDeviceExtension requests and buffers to-device messages. The since token
// advances to each response's next_batch as soon as OnResponse processes it,
// whether or not Drain has handed the events to the caller yet, so the next
// request acknowledges them. It dispatches PreProcess: to-device payloads (e.g. room
// key shares) should be available to a crypto layer before that layer is
// asked to decrypt the timeline events a response carries for the same
// rooms.
type ToDeviceExtension struct {
	mu      sync.Mutex
	enabled bool
	limit   int
	since   string
	events  []json.RawMessage
}

// NewToDeviceExtension returns an extension that requests up to limit
// messages per response (defaultToDeviceLimit if limit <= 0) once enabled.
func NewToDeviceExtension(enabled bool, limit int) *ToDeviceExtension {
	if limit <= 0 {
		limit = defaultToDeviceLimit
	}
	return &ToDeviceExtension{enabled: enabled, limit: limit}
}

func (t *ToDeviceExtension) Name() string { return "to_device" }

func (t *ToDeviceExtension) When() sync3.Phase { return sync3.PreProcess }

// SetEnabled toggles whether future requests ask for to-device messages.
func (t *ToDeviceExtension) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *ToDeviceExtension) OnRequest(isInitial bool) interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return nil
	}
	return toDeviceRequest{Enabled: true, Limit: t.limit, Since: t.since}
}

func (t *ToDeviceExtension) OnResponse(data json.RawMessage) error {
	var resp toDeviceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.since = resp.NextBatch
	t.events = append(t.events, resp.Events...)
	return nil
}

// Drain returns and clears every to-device event buffered since the last
// Drain call. The since token advances independently of Drain: it is safe to
// call Drain on whatever cadence the caller's crypto layer needs.
func (t *ToDeviceExtension) Drain() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.events
	t.events = nil
	return events
}
