// Package testutil provides response matchers for exercising a SyncEngine
// against canned sync3.Response fixtures, modelled on the upstream proxy's
// testutils/m matcher package.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/matrix-org/sliding-sync-client/sync3"
)

type RespMatcher func(res *sync3.Response) error
type ListMatcher func(list sync3.ListResponse) error
type OpMatcher func(op sync3.ResponseOp) error
type RoomMatcher func(r sync3.RoomData) error

func MatchRoomName(name string) RoomMatcher {
	return func(r sync3.RoomData) error {
		if name == "" {
			return nil
		}
		if r.Name != name {
			return fmt.Errorf("name mismatch, got %s want %s", r.Name, name)
		}
		return nil
	}
}

func MatchRoomInitial(initial bool) RoomMatcher {
	return func(r sync3.RoomData) error {
		if r.Initial != initial {
			return fmt.Errorf("MatchRoomInitial: got %v want %v", r.Initial, initial)
		}
		return nil
	}
}

func MatchRoomTimeline(events []json.RawMessage) RoomMatcher {
	return func(r sync3.RoomData) error {
		if len(r.Timeline) != len(events) {
			return fmt.Errorf("timeline length mismatch: got %d want %d", len(r.Timeline), len(events))
		}
		for i := range r.Timeline {
			if !bytes.Equal(r.Timeline[i], events[i]) {
				return fmt.Errorf("timeline[%d]\ngot  %v \nwant %v", i, string(r.Timeline[i]), string(events[i]))
			}
		}
		return nil
	}
}

func MatchRoomRequiredState(events []json.RawMessage) RoomMatcher {
	return func(r sync3.RoomData) error {
		if len(r.RequiredState) != len(events) {
			return fmt.Errorf("required state length mismatch, got %d want %d", len(r.RequiredState), len(events))
		}
		for _, want := range events {
			found := false
			for _, got := range r.RequiredState {
				if bytes.Equal(got, want) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("required state wants event %v but it does not exist", string(want))
			}
		}
		return nil
	}
}

func MatchV3Count(wantCount int64) ListMatcher {
	return func(res sync3.ListResponse) error {
		if res.Count != wantCount {
			return fmt.Errorf("list got count %d want %d", res.Count, wantCount)
		}
		return nil
	}
}

func MatchNoV3Ops() RespMatcher {
	return func(res *sync3.Response) error {
		for i, l := range res.Lists {
			if len(l.Ops) > 0 {
				return fmt.Errorf("MatchNoV3Ops: list %d got %d ops", i, len(l.Ops))
			}
		}
		return nil
	}
}

func MatchV3SyncOp(start, end int64, roomIDs []string, anyOrder ...bool) OpMatcher {
	allowAnyOrder := len(anyOrder) > 0 && anyOrder[0]
	return func(op sync3.ResponseOp) error {
		if op.Op() != sync3.OpSync {
			return fmt.Errorf("op: %s != %s", op.Op(), sync3.OpSync)
		}
		oper := op.(*sync3.OpRange)
		if oper.Range[0] != start {
			return fmt.Errorf("%s: got start %d want %d", sync3.OpSync, oper.Range[0], start)
		}
		if oper.Range[1] != end {
			return fmt.Errorf("%s: got end %d want %d", sync3.OpSync, oper.Range[1], end)
		}
		got := append([]string(nil), oper.RoomIDs...)
		want := append([]string(nil), roomIDs...)
		if allowAnyOrder {
			sort.Strings(got)
			sort.Strings(want)
		}
		if !reflect.DeepEqual(got, want) {
			return fmt.Errorf("%s: got rooms %v want %v", sync3.OpSync, got, want)
		}
		return nil
	}
}

func MatchV3InsertOp(roomIndex int64, roomID string) OpMatcher {
	return func(op sync3.ResponseOp) error {
		if op.Op() != sync3.OpInsert {
			return fmt.Errorf("op: %s != %s", op.Op(), sync3.OpInsert)
		}
		oper := op.(*sync3.OpSingle)
		if oper.Index == nil || *oper.Index != roomIndex {
			return fmt.Errorf("%s: got index %v want %d", sync3.OpInsert, oper.Index, roomIndex)
		}
		if oper.RoomID != roomID {
			return fmt.Errorf("%s: got %s want %s", sync3.OpInsert, oper.RoomID, roomID)
		}
		return nil
	}
}

func MatchV3DeleteOp(roomIndex int64) OpMatcher {
	return func(op sync3.ResponseOp) error {
		if op.Op() != sync3.OpDelete {
			return fmt.Errorf("op: %s != %s", op.Op(), sync3.OpDelete)
		}
		oper := op.(*sync3.OpSingle)
		if oper.Index == nil || *oper.Index != roomIndex {
			return fmt.Errorf("%s: got room index %v want %d", sync3.OpDelete, oper.Index, roomIndex)
		}
		return nil
	}
}

func MatchV3InvalidateOp(start, end int64) OpMatcher {
	return func(op sync3.ResponseOp) error {
		if op.Op() != sync3.OpInvalidate {
			return fmt.Errorf("op: %s != %s", op.Op(), sync3.OpInvalidate)
		}
		oper := op.(*sync3.OpRange)
		if oper.Range[0] != start || oper.Range[1] != end {
			return fmt.Errorf("%s: got range [%d,%d] want [%d,%d]", sync3.OpInvalidate, oper.Range[0], oper.Range[1], start, end)
		}
		return nil
	}
}

func MatchV3Ops(matchOps ...OpMatcher) ListMatcher {
	return func(res sync3.ListResponse) error {
		if len(matchOps) != len(res.Ops) {
			return fmt.Errorf("MatchV3Ops: got %d ops want %d", len(res.Ops), len(matchOps))
		}
		for i := range res.Ops {
			if err := matchOps[i](res.Ops[i]); err != nil {
				return fmt.Errorf("MatchV3Ops: op[%d](%s) - %s", i, res.Ops[i].Op(), err)
			}
		}
		return nil
	}
}

func MatchTxnID(txnID string) RespMatcher {
	return func(res *sync3.Response) error {
		if txnID != res.TxnID {
			return fmt.Errorf("MatchTxnID: got %v want %v", res.TxnID, txnID)
		}
		return nil
	}
}

func MatchRoomSubscription(roomID string, matchers ...RoomMatcher) RespMatcher {
	return func(res *sync3.Response) error {
		room, ok := res.Rooms[roomID]
		if !ok {
			return fmt.Errorf("MatchRoomSubscription[%s]: want room but it was missing", roomID)
		}
		for _, m := range matchers {
			if err := m(room); err != nil {
				return fmt.Errorf("MatchRoomSubscription[%s]: %s", roomID, err)
			}
		}
		return nil
	}
}

func CheckList(index int, res sync3.ListResponse, matchers ...ListMatcher) error {
	for _, m := range matchers {
		if err := m(res); err != nil {
			return fmt.Errorf("MatchList[%d]: %v", index, err)
		}
	}
	return nil
}

func MatchList(index int, matchers ...ListMatcher) RespMatcher {
	return func(res *sync3.Response) error {
		if index >= len(res.Lists) {
			return fmt.Errorf("MatchList: index %d out of range, got %d lists", index, len(res.Lists))
		}
		return CheckList(index, res.Lists[index], matchers...)
	}
}

// LogResponse builds a matcher that always succeeds. As a side-effect, it
// pretty-prints the given sync response to the test log.
func LogResponse(t *testing.T) RespMatcher {
	return func(res *sync3.Response) error {
		dump, _ := json.MarshalIndent(res, "", "    ")
		t.Logf("Response was: %s", dump)
		return nil
	}
}

func MatchResponse(t *testing.T, res *sync3.Response, matchers ...RespMatcher) {
	t.Helper()
	for _, m := range matchers {
		if err := m(res); err != nil {
			b, _ := json.MarshalIndent(res, "", "    ")
			t.Errorf("MatchResponse: %s\n%s", err, string(b))
		}
	}
}
