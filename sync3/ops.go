package sync3

import "github.com/matrix-org/sliding-sync-client/internal"

// The four operation kinds a ListResponse's Ops can carry. These are the
// wire values of the "op" JSON field (see ResponseOp in response.go).
const (
	OpSync       = "SYNC"
	OpInvalidate = "INVALIDATE"
	OpInsert     = "INSERT"
	OpDelete     = "DELETE"
)

// ApplyListResponse is the OpReplayer: a pure function (modulo logging) that
// applies a ListResponse's ops, in order, to list's sparse index map. It must
// set joined_count from resp.Count before replaying any op, matching the
// server's invariant that count always describes the list as of this
// response regardless of what the ops do to the map.
//
// The whole op sequence is replayed under a single hold of list's mutex
// (withRoomIndexLocked) rather than one lock acquisition per op, so a
// concurrent reader (GetListData, the debug server) never observes a
// partially-replayed response.
func ApplyListResponse(list *SlidingList, resp ListResponse) {
	list.SetJoinedCount(resp.Count)

	list.withRoomIndexLocked(func(m map[int64]string, indexInRange func(int64) bool) {
		gapIndex := int64(-1)
		for _, op := range resp.Ops {
			switch o := op.(type) {
			case *OpSingle:
				switch o.Operation {
				case OpDelete:
					if o.Index == nil {
						internal.Assert("DELETE op carries an index", false)
						continue
					}
					idx := *o.Index
					delete(m, idx)
					gapIndex = idx
				case OpInsert:
					if o.Index == nil {
						internal.Assert("INSERT op carries an index", false)
						continue
					}
					idx := *o.Index
					if _, occupied := m[idx]; occupied {
						if gapIndex < 0 {
							logger.Warn().Int64("index", idx).Msg("OpReplayer: dropping INSERT into occupied slot with no prior DELETE in this response")
							continue
						}
						shiftTowardsGap(m, indexInRange, gapIndex, idx)
					}
					m[idx] = o.RoomID
				}
			case *OpRange:
				switch o.Operation {
				case OpInvalidate:
					lo, hi := o.Range[0], o.Range[1]
					for k := range m {
						if k >= lo && k <= hi {
							delete(m, k)
						}
					}
				case OpSync:
					lo, hi := o.Range[0], o.Range[1]
					for i := lo; i <= hi; i++ {
						pos := i - lo
						if pos >= int64(len(o.RoomIDs)) {
							// fewer room_ids than the range width: end-of-list signal, stop early.
							break
						}
						m[i] = o.RoomIDs[pos]
					}
				}
			}
		}
	})
}

// shiftTowardsGap implements the INSERT-into-an-occupied-slot shift
// algorithm: occupants between the most recent DELETE's gap and the new
// INSERT's target slide one step towards the gap, so the newly INSERTed
// room can take insertIndex without clobbering an occupant the server still
// expects us to track elsewhere. m and indexInRange are the raw map and
// range-test handed in by withRoomIndexLocked; the caller already holds the
// list's mutex.
func shiftTowardsGap(m map[int64]string, indexInRange func(int64) bool, gapIndex, insertIndex int64) {
	if gapIndex > insertIndex {
		for i := gapIndex; i > insertIndex; i-- {
			if !indexInRange(i) {
				continue
			}
			if v, ok := m[i-1]; ok {
				m[i] = v
			} else {
				delete(m, i)
			}
		}
	} else if gapIndex < insertIndex {
		for i := gapIndex; i < insertIndex; i++ {
			if !indexInRange(i) {
				continue
			}
			if v, ok := m[i+1]; ok {
				m[i] = v
			} else {
				delete(m, i)
			}
		}
	}
	// gapIndex == insertIndex: no shift needed.
}
