package extensions

import (
	"encoding/json"
	"testing"
)

func TestTypingExtensionTracksLatestPerRoom(t *testing.T) {
	ext := NewTypingExtension(true)
	err := ext.OnResponse(json.RawMessage(`{"rooms": {"!a:test": {"type":"m.typing","content":{"user_ids":["@alice:test"]}}}}`))
	if err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
	ev, ok := ext.Typing("!a:test")
	if !ok {
		t.Fatalf("expected typing event for !a:test")
	}
	var decoded struct {
		Content struct {
			UserIDs []string `json:"user_ids"`
		} `json:"content"`
	}
	if err := json.Unmarshal(ev, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Content.UserIDs) != 1 || decoded.Content.UserIDs[0] != "@alice:test" {
		t.Fatalf("got %v", decoded.Content.UserIDs)
	}
	if _, ok := ext.Typing("!b:test"); ok {
		t.Fatalf("expected no typing event for !b:test")
	}
}
