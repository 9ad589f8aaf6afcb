package sync3

import "testing"

func TestSlidingListStickyParamsOnlySentOnceUntilReplace(t *testing.T) {
	l := NewSlidingList(RequestListParams{
		Ranges:        SliceRanges{{0, 9}},
		Sort:          []string{"by_recency"},
		TimelineLimit: 5,
	})

	first := l.Snapshot(false)
	if first.Sort == nil || first.TimelineLimit != 5 {
		t.Fatalf("expected first snapshot to carry sticky fields, got %+v", first)
	}
	l.ClearModified()

	l.UpdateRanges(SliceRanges{{10, 19}})
	second := l.Snapshot(false)
	if second.Sort != nil || second.TimelineLimit != 0 {
		t.Fatalf("expected second snapshot to omit sticky fields after clear_modified, got %+v", second)
	}
	if second.Ranges[0][0] != 10 {
		t.Fatalf("expected ranges to update regardless of modified flag, got %+v", second.Ranges)
	}

	l.Replace(RequestListParams{Ranges: SliceRanges{{0, 9}}, Sort: []string{"by_name"}})
	third := l.Snapshot(false)
	if third.Sort == nil {
		t.Fatalf("expected replace() to force full sticky params on next snapshot")
	}
}

func TestSlidingListReplaceClearsDerivedState(t *testing.T) {
	l := NewSlidingList(RequestListParams{Ranges: SliceRanges{{0, 1}}})
	l.roomIndexToRoomID[0] = "A"
	l.SetJoinedCount(10)

	l.Replace(RequestListParams{Ranges: SliceRanges{{0, 1}}, Sort: []string{"by_name"}})

	if l.Len() != 0 {
		t.Fatalf("expected replace() to clear the index map, got %d entries", l.Len())
	}
	if l.JoinedCount() != 0 {
		t.Fatalf("expected replace() to zero joined_count, got %d", l.JoinedCount())
	}
}

func TestSlidingListUpdateRangesNeverSetsModified(t *testing.T) {
	l := NewSlidingList(RequestListParams{Ranges: SliceRanges{{0, 1}}})
	l.ClearModified()
	l.UpdateRanges(SliceRanges{{2, 3}})
	if l.Modified() {
		t.Fatalf("update_ranges must never set modified")
	}
}
