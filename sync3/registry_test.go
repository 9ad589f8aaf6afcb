package sync3

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/matrix-org/sliding-sync-client/internal"
)

type fakeExtension struct {
	name     string
	phase    Phase
	payload  interface{}
	received json.RawMessage
}

func (f *fakeExtension) Name() string                      { return f.name }
func (f *fakeExtension) When() Phase                        { return f.phase }
func (f *fakeExtension) OnRequest(isInitial bool) interface{} { return f.payload }
func (f *fakeExtension) OnResponse(data json.RawMessage) error {
	f.received = data
	return nil
}

func TestExtensionRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewExtensionRegistry()
	if err := r.Register(&fakeExtension{name: "e2ee"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(&fakeExtension{name: "e2ee"})
	var dup *internal.DuplicateExtensionError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateExtensionError, got %v", err)
	}
}

func TestExtensionRegistryComposeRequestOmitsNilPayloads(t *testing.T) {
	r := NewExtensionRegistry()
	r.Register(&fakeExtension{name: "enabled_ext", payload: map[string]bool{"enabled": true}})
	r.Register(&fakeExtension{name: "disabled_ext", payload: nil})

	out := r.ComposeRequest(true)
	if _, ok := out["enabled_ext"]; !ok {
		t.Fatalf("expected enabled_ext in request")
	}
	if _, ok := out["disabled_ext"]; ok {
		t.Fatalf("expected disabled_ext to be omitted")
	}
}

func TestExtensionRegistryDispatchResponseHonoursPhase(t *testing.T) {
	r := NewExtensionRegistry()
	pre := &fakeExtension{name: "pre", phase: PreProcess}
	post := &fakeExtension{name: "post", phase: PostProcess}
	r.Register(pre)
	r.Register(post)

	data := map[string]json.RawMessage{
		"pre":  json.RawMessage(`{"a":1}`),
		"post": json.RawMessage(`{"b":2}`),
	}
	r.DispatchResponse(PreProcess, data)
	if string(pre.received) != `{"a":1}` {
		t.Fatalf("expected pre to receive its payload, got %s", pre.received)
	}
	if post.received != nil {
		t.Fatalf("expected post to not be dispatched yet")
	}

	r.DispatchResponse(PostProcess, data)
	if string(post.received) != `{"b":2}` {
		t.Fatalf("expected post to receive its payload, got %s", post.received)
	}
}
