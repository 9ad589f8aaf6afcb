package sync3

import "sync"

// SlidingList is per-list state: the caller-controlled parameters plus the
// derived state the engine accumulates by replaying server responses
// (room_index_to_room_id, joined_count) and the modified flag that decides
// whether the next request's snapshot needs to carry the full sticky param
// set or just the current ranges.
//
// Ranges are non-sticky because they change frequently (the user scrolling a
// room list). Every other param is sticky: the server retains it, so it is
// only retransmitted when it changes.
//
// A *SlidingList is reached both from the engine's own Start loop goroutine
// (Snapshot, ApplyListResponse, ClearModified, SetJoinedCount) and from
// arbitrary caller goroutines (SetListRanges, GetListData, GetList), so every
// field access goes through mu.
type SlidingList struct {
	mu sync.Mutex

	params   RequestListParams
	modified bool

	roomIndexToRoomID map[int64]string
	joinedCount       int64
}

// NewSlidingList constructs a list whose first snapshot will always carry
// the full sticky param set (nothing has been transmitted yet).
func NewSlidingList(params RequestListParams) *SlidingList {
	l := &SlidingList{}
	l.Replace(params)
	return l
}

// Replace sets params, clears derived state (the index map no longer
// corresponds to anything the server has told us about this new shape of
// the list) and marks the list modified so the next snapshot carries every
// sticky field.
func (l *SlidingList) Replace(params RequestListParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params = params.Clone()
	l.roomIndexToRoomID = make(map[int64]string)
	l.joinedCount = 0
	l.modified = true
}

// UpdateRanges updates only the ranges. This never touches modified: ranges
// are non-sticky and are sent on every request regardless.
func (l *SlidingList) UpdateRanges(ranges SliceRanges) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.params.Ranges = ranges.Clone()
}

// ClearModified is called by the engine after a successful transmission of
// the full sticky param set.
func (l *SlidingList) ClearModified() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modified = false
}

// Modified reports whether any field other than ranges has changed since the
// last successful transmission.
func (l *SlidingList) Modified() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modified
}

// IndexInRange reports whether i is covered by any of the list's current
// ranges.
func (l *SlidingList) IndexInRange(i int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexInRangeLocked(i)
}

func (l *SlidingList) indexInRangeLocked(i int64) bool {
	return l.params.Ranges.Inside(i)
}

// Snapshot returns what should be placed in the request body for this list.
// If the list is modified (as a new or just-replaced list always is), or
// includeSticky is true, the full sticky param set is included; otherwise
// only ranges are sent. The engine itself always passes false.
func (l *SlidingList) Snapshot(includeSticky bool) RequestListFragment {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.modified || includeSticky {
		return RequestListFragment{
			Ranges:          l.params.Ranges.Clone(),
			Sort:            append([]string(nil), l.params.Sort...),
			Filters:         cloneFilters(l.params.Filters),
			TimelineLimit:   l.params.TimelineLimit,
			RequiredState:   append([][2]string(nil), l.params.RequiredState...),
			SlowGetAllRooms: l.params.SlowGetAllRooms,
		}
	}
	return RequestListFragment{
		Ranges: l.params.Ranges.Clone(),
	}
}

func cloneFilters(f *RequestFilters) *RequestFilters {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

// Params returns a deep clone of the list's current parameters.
func (l *SlidingList) Params() RequestListParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Clone()
}

// JoinedCount returns the server-reported total joined count for this list.
func (l *SlidingList) JoinedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joinedCount
}

// SetJoinedCount is called by the engine with resp.lists[i].count before
// OpReplayer applies that list's ops.
func (l *SlidingList) SetJoinedCount(count int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joinedCount = count
}

// RoomIDToIndexMap returns a deep clone of the sparse index -> room-id map,
// for handing out to callers (get_list_data) or to a List event.
func (l *SlidingList) RoomIDToIndexMap() map[int64]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[int64]string, len(l.roomIndexToRoomID))
	for k, v := range l.roomIndexToRoomID {
		cp[k] = v
	}
	return cp
}

// Len returns the number of tracked index->room-id mappings.
func (l *SlidingList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.roomIndexToRoomID)
}

// withRoomIndexLocked runs fn with the list's mutex held and direct access to
// the raw index->room-id map, for the OpReplayer (ops.go) to apply a whole
// response's worth of ops as one atomic unit instead of taking the lock once
// per op.
func (l *SlidingList) withRoomIndexLocked(fn func(m map[int64]string, indexInRange func(int64) bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.roomIndexToRoomID, l.indexInRangeLocked)
}
