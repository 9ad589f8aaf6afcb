package sync3

import (
	"reflect"
	"testing"
)

func TestSubscriptionSetDiff(t *testing.T) {
	s := NewSubscriptionSet()
	s.SetDesired([]string{"a", "b"})
	s.ApplyDiff([]string{"b", "c"}, nil) // seed confirmed = {b, c}

	newSubs, gone := s.Diff()
	if !reflect.DeepEqual(newSubs, []string{"a"}) {
		t.Fatalf("new subs: got %v want [a]", newSubs)
	}
	if !reflect.DeepEqual(gone, []string{"c"}) {
		t.Fatalf("gone subs: got %v want [c]", gone)
	}

	s.ApplyDiff(newSubs, gone)
	if got := s.Confirmed(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("confirmed after apply: got %v want [a b]", got)
	}
}

func TestSubscriptionSetNoDiffWhenInSync(t *testing.T) {
	s := NewSubscriptionSet()
	s.SetDesired([]string{"a", "b"})
	s.ApplyDiff([]string{"a", "b"}, nil)
	newSubs, gone := s.Diff()
	if len(newSubs) != 0 || len(gone) != 0 {
		t.Fatalf("expected no diff, got new=%v gone=%v", newSubs, gone)
	}
}

func TestSubscriptionSetParamsClearsConfirmed(t *testing.T) {
	s := NewSubscriptionSet()
	s.SetDesired([]string{"a"})
	s.ApplyDiff([]string{"a"}, nil)
	if len(s.Confirmed()) != 1 {
		t.Fatalf("setup failed")
	}
	s.SetParams(RoomSubscription{TimelineLimit: 5})
	if len(s.Confirmed()) != 0 {
		t.Fatalf("expected SetParams to clear confirmed, got %v", s.Confirmed())
	}
	newSubs, _ := s.Diff()
	if !reflect.DeepEqual(newSubs, []string{"a"}) {
		t.Fatalf("expected a to be resent after SetParams, got %v", newSubs)
	}
}
