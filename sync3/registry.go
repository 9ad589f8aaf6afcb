package sync3

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/internal"
)

// Phase declares when an Extension's response is dispatched relative to room
// data emission.
type Phase int

const (
	// PreProcess extensions fire before room-data emission, e.g. so
	// to-device payloads can be pre-processed ahead of the corresponding
	// room events.
	PreProcess Phase = iota
	// PostProcess extensions fire after room-data emission but before
	// the final List event, e.g. for decorators that depend on the
	// consumer having already ingested the rooms.
	PostProcess
)

// Extension is a named, phased request/response side-channel carried within
// the sync envelope under "extensions".
type Extension interface {
	// Name is the unique key placed under "extensions" in requests and
	// looked up under "extensions" in responses.
	Name() string
	// OnRequest contributes this extension's per-request JSON payload.
	// isInitial is true exactly when this is the first request of the
	// engine's lifetime (no sync position yet). A nil return omits the
	// extension from this request entirely.
	OnRequest(isInitial bool) interface{}
	// OnResponse consumes this extension's raw JSON payload from the
	// server, if any was present.
	OnResponse(data json.RawMessage) error
	// When declares the dispatch phase.
	When() Phase
}

// ExtensionRegistry is the mapping from extension name to Extension
// described in spec §4.3. Names are unique; registering a duplicate fails.
type ExtensionRegistry struct {
	mu    sync.Mutex
	exts  map[string]Extension
	order []string
}

// NewExtensionRegistry returns an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{
		exts: make(map[string]Extension),
	}
}

// Register adds ext to the registry, keyed by its Name(). Returns a
// *internal.DuplicateExtensionError if that name is already registered.
func (r *ExtensionRegistry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := ext.Name()
	if _, exists := r.exts[name]; exists {
		return &internal.DuplicateExtensionError{Name: name}
	}
	r.exts[name] = ext
	r.order = append(r.order, name)
	return nil
}

// ComposeRequest builds the "extensions" object for the next request body by
// calling OnRequest on every registered extension, in registration order.
func (r *ExtensionRegistry) ComposeRequest(isInitial bool) map[string]json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]json.RawMessage)
	for _, name := range r.order {
		ext := r.exts[name]
		payload := ext.OnRequest(isInitial)
		if payload == nil {
			continue
		}
		b, err := json.Marshal(payload)
		if err != nil {
			logger.Err(err).Str("extension", name).Msg("ExtensionRegistry: failed to marshal OnRequest payload")
			continue
		}
		out[name] = b
	}
	return out
}

// DispatchResponse calls OnResponse on every extension registered for the
// given phase whose name is present in data, in registration order.
func (r *ExtensionRegistry) DispatchResponse(phase Phase, data map[string]json.RawMessage) {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	exts := make(map[string]Extension, len(r.exts))
	for k, v := range r.exts {
		exts[k] = v
	}
	r.mu.Unlock()

	for _, name := range names {
		ext := exts[name]
		if ext.When() != phase {
			continue
		}
		raw, ok := data[name]
		if !ok {
			continue
		}
		if err := ext.OnResponse(raw); err != nil {
			logger.Err(err).Str("extension", name).Msg("ExtensionRegistry: OnResponse failed")
		}
	}
}
