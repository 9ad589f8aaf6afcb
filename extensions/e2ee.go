package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

// e2eeRequest is the wire shape of the e2ee extension's request object.
type e2eeRequest struct {
	Enabled bool `json:"enabled"`
}

// E2EEDeviceList mirrors the server's device_lists sub-object: users whose
// device list changed or who dropped out of shared-room visibility since the
// last response.
type E2EEDeviceList struct {
	Changed []string `json:"changed"`
	Left    []string `json:"left"`
}

// e2eeResponse is the wire shape of the e2ee extension's response object.
type e2eeResponse struct {
	OTKCounts        map[string]int  `json:"device_one_time_keys_count,omitempty"`
	DeviceLists      *E2EEDeviceList `json:"device_lists,omitempty"`
	FallbackKeyTypes []string        `json:"device_unused_fallback_key_types,omitempty"`
}

// E2EEExtension surfaces one-time-key counts, fallback key types and device
// list deltas, all of which a crypto layer needs before it can safely decrypt
// events in the rooms a response is about to describe — hence it dispatches
// in the PreProcess phase.
type E2EEExtension struct {
	mu          sync.Mutex
	enabled     bool
	otkCounts   map[string]int
	deviceLists E2EEDeviceList
	fallback    []string
}

// NewE2EEExtension returns an extension that requests device/key data once
// enabled is true.
func NewE2EEExtension(enabled bool) *E2EEExtension {
	return &E2EEExtension{enabled: enabled}
}

func (e *E2EEExtension) Name() string { return "e2ee" }

func (e *E2EEExtension) When() sync3.Phase { return sync3.PreProcess }

// SetEnabled toggles whether future requests ask for e2ee data.
func (e *E2EEExtension) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *E2EEExtension) OnRequest(isInitial bool) interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}
	return e2eeRequest{Enabled: true}
}

func (e *E2EEExtension) OnResponse(data json.RawMessage) error {
	var resp e2eeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if resp.OTKCounts != nil {
		e.otkCounts = resp.OTKCounts
	}
	if resp.FallbackKeyTypes != nil {
		e.fallback = resp.FallbackKeyTypes
	}
	if resp.DeviceLists != nil {
		e.deviceLists = *resp.DeviceLists
	}
	return nil
}

// OTKCounts returns the most recently reported one-time-key counts by
// algorithm name.
func (e *E2EEExtension) OTKCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[string]int, len(e.otkCounts))
	for k, v := range e.otkCounts {
		cp[k] = v
	}
	return cp
}

// FallbackKeyTypes returns the most recently reported unused fallback key
// algorithms.
func (e *E2EEExtension) FallbackKeyTypes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fallback...)
}

// DeviceListChanges returns the most recently reported device list deltas.
// Each response describes the delta since the last one, not a cumulative
// total: callers that need cumulative state must fold these themselves.
func (e *E2EEExtension) DeviceListChanges() E2EEDeviceList {
	e.mu.Lock()
	defer e.mu.Unlock()
	return E2EEDeviceList{
		Changed: append([]string(nil), e.deviceLists.Changed...),
		Left:    append([]string(nil), e.deviceLists.Left...),
	}
}
