package sync3

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SubscriptionSet tracks the desired set of individually-subscribed rooms
// (set by the caller) against the confirmed set (what the server has
// actually acknowledged as subscribed). Only the engine updates confirmed,
// and only after a successful round trip that sent the corresponding diff.
type SubscriptionSet struct {
	mu        sync.Mutex
	desired   map[string]struct{}
	confirmed map[string]struct{}
	params    RoomSubscription
}

// NewSubscriptionSet returns an empty subscription set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{
		desired:   make(map[string]struct{}),
		confirmed: make(map[string]struct{}),
	}
}

// SetDesired replaces the desired set wholesale.
func (s *SubscriptionSet) SetDesired(roomIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desired = toSet(roomIDs)
}

// Desired returns a sorted clone of the desired set.
func (s *SubscriptionSet) Desired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.desired)
}

// Confirmed returns a sorted clone of the confirmed set.
func (s *SubscriptionSet) Confirmed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.confirmed)
}

// SetParams replaces the subscription params template applied to every new
// subscription, and clears confirmed: every desired room must now be
// re-sent with the new template, since the server has no record of it.
func (s *SubscriptionSet) SetParams(params RoomSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	s.confirmed = make(map[string]struct{})
}

// Params returns the current subscription params template.
func (s *SubscriptionSet) Params() RoomSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Diff computes new = desired \ confirmed and gone = confirmed \ desired,
// both sorted for deterministic request bodies and assertions.
func (s *SubscriptionSet) Diff() (newSubs, gone []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID := range s.desired {
		if _, ok := s.confirmed[roomID]; !ok {
			newSubs = append(newSubs, roomID)
		}
	}
	for roomID := range s.confirmed {
		if _, ok := s.desired[roomID]; !ok {
			gone = append(gone, roomID)
		}
	}
	slices.Sort(newSubs)
	slices.Sort(gone)
	return
}

// ApplyDiff updates confirmed after a successful round trip that sent
// exactly this diff: confirmed = (confirmed ∪ newSubs) \ gone.
func (s *SubscriptionSet) ApplyDiff(newSubs, gone []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, roomID := range newSubs {
		s.confirmed[roomID] = struct{}{}
	}
	for _, roomID := range gone {
		delete(s.confirmed, roomID)
	}
}

func toSet(roomIDs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := maps.Keys(set)
	slices.Sort(keys)
	return keys
}
