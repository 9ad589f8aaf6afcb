package sync3

import (
	"reflect"
	"testing"
)

func seededList(t *testing.T, lo, hi int64, seed map[int64]string) *SlidingList {
	t.Helper()
	l := NewSlidingList(RequestListParams{Ranges: SliceRanges{{lo, hi}}})
	for k, v := range seed {
		l.roomIndexToRoomID[k] = v
	}
	return l
}

func idx(i int64) *int64 { return &i }

func TestOpReplayerInsertAfterDeleteShiftsRightward(t *testing.T) {
	l := seededList(t, 0, 3, map[int64]string{0: "A", 1: "B", 2: "C", 3: "D"})
	ApplyListResponse(l, ListResponse{
		Count: 4,
		Ops: []ResponseOp{
			&OpSingle{Operation: OpDelete, Index: idx(3)},
			&OpSingle{Operation: OpInsert, Index: idx(0), RoomID: "E"},
		},
	})
	want := map[int64]string{0: "E", 1: "A", 2: "B", 3: "C"}
	if !reflect.DeepEqual(l.roomIndexToRoomID, want) {
		t.Fatalf("got %v want %v", l.roomIndexToRoomID, want)
	}
}

func TestOpReplayerInsertAfterDeleteShiftsLeftward(t *testing.T) {
	l := seededList(t, 0, 3, map[int64]string{0: "A", 1: "B", 2: "C", 3: "D"})
	ApplyListResponse(l, ListResponse{
		Count: 4,
		Ops: []ResponseOp{
			&OpSingle{Operation: OpDelete, Index: idx(0)},
			&OpSingle{Operation: OpInsert, Index: idx(3), RoomID: "E"},
		},
	})
	want := map[int64]string{0: "B", 1: "C", 2: "D", 3: "E"}
	if !reflect.DeepEqual(l.roomIndexToRoomID, want) {
		t.Fatalf("got %v want %v", l.roomIndexToRoomID, want)
	}
}

func TestOpReplayerSyncPastEnd(t *testing.T) {
	l := seededList(t, 0, 4, nil)
	ApplyListResponse(l, ListResponse{
		Count: 3,
		Ops: []ResponseOp{
			&OpRange{Operation: OpSync, Range: [2]int64{0, 4}, RoomIDs: []string{"R1", "R2", "R3"}},
		},
	})
	want := map[int64]string{0: "R1", 1: "R2", 2: "R3"}
	if !reflect.DeepEqual(l.roomIndexToRoomID, want) {
		t.Fatalf("got %v want %v", l.roomIndexToRoomID, want)
	}
	if _, ok := l.roomIndexToRoomID[3]; ok {
		t.Fatalf("index 3 should be absent")
	}
	if _, ok := l.roomIndexToRoomID[4]; ok {
		t.Fatalf("index 4 should be absent")
	}
}

func TestOpReplayerInvalidateThenSync(t *testing.T) {
	l := seededList(t, 0, 2, map[int64]string{0: "A", 1: "B", 2: "C"})
	ApplyListResponse(l, ListResponse{
		Count: 3,
		Ops: []ResponseOp{
			&OpRange{Operation: OpInvalidate, Range: [2]int64{0, 1}},
			&OpRange{Operation: OpSync, Range: [2]int64{0, 2}, RoomIDs: []string{"X", "Y", "Z"}},
		},
	})
	want := map[int64]string{0: "X", 1: "Y", 2: "Z"}
	if !reflect.DeepEqual(l.roomIndexToRoomID, want) {
		t.Fatalf("got %v want %v", l.roomIndexToRoomID, want)
	}
}

func TestOpReplayerSetsJoinedCountRegardlessOfOps(t *testing.T) {
	l := seededList(t, 0, 1, nil)
	ApplyListResponse(l, ListResponse{Count: 42})
	if l.JoinedCount() != 42 {
		t.Fatalf("got %d want 42", l.JoinedCount())
	}
}

func TestOpReplayerJoinedCountNeverBelowMapSize(t *testing.T) {
	l := seededList(t, 0, 4, nil)
	ApplyListResponse(l, ListResponse{
		Count: 3,
		Ops: []ResponseOp{
			&OpRange{Operation: OpSync, Range: [2]int64{0, 4}, RoomIDs: []string{"R1", "R2", "R3"}},
		},
	})
	if int64(l.Len()) > l.JoinedCount() {
		t.Fatalf("map size %d exceeds joined_count %d", l.Len(), l.JoinedCount())
	}
}
