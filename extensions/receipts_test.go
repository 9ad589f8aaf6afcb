package extensions

import (
	"encoding/json"
	"testing"
)

func TestReceiptsExtensionTracksLatestPerRoom(t *testing.T) {
	ext := NewReceiptsExtension(true)
	err := ext.OnResponse(json.RawMessage(`{"rooms": {"!a:test": {"type":"m.receipt"}}}`))
	if err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
	if _, ok := ext.Receipts("!a:test"); !ok {
		t.Fatalf("expected receipt for !a:test")
	}
	if _, ok := ext.Receipts("!missing:test"); ok {
		t.Fatalf("expected no receipt for !missing:test")
	}
}

func TestReceiptsExtensionRequestOmittedWhenDisabled(t *testing.T) {
	ext := NewReceiptsExtension(false)
	if payload := ext.OnRequest(true); payload != nil {
		t.Fatalf("expected nil payload when disabled, got %v", payload)
	}
}
