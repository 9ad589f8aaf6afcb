package extensions

import (
	"encoding/json"
	"testing"
)

func TestE2EEExtensionRequestOmittedWhenDisabled(t *testing.T) {
	e := NewE2EEExtension(false)
	if payload := e.OnRequest(true); payload != nil {
		t.Fatalf("expected nil payload when disabled, got %v", payload)
	}
}

func TestE2EEExtensionOnResponseStoresDeviceLists(t *testing.T) {
	e := NewE2EEExtension(true)
	data := json.RawMessage(`{
		"device_one_time_keys_count": {"signed_curve25519": 50},
		"device_lists": {"changed": ["@alice:test"], "left": ["@bob:test"]},
		"device_unused_fallback_key_types": ["signed_curve25519"]
	}`)
	if err := e.OnResponse(data); err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
	if e.OTKCounts()["signed_curve25519"] != 50 {
		t.Fatalf("got otk counts %v", e.OTKCounts())
	}
	dl := e.DeviceListChanges()
	if len(dl.Changed) != 1 || dl.Changed[0] != "@alice:test" {
		t.Fatalf("got changed %v", dl.Changed)
	}
	if len(dl.Left) != 1 || dl.Left[0] != "@bob:test" {
		t.Fatalf("got left %v", dl.Left)
	}
	if len(e.FallbackKeyTypes()) != 1 {
		t.Fatalf("got fallback key types %v", e.FallbackKeyTypes())
	}
}
