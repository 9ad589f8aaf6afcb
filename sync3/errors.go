package sync3

import "fmt"

// IndexOutOfBoundsError is returned by SetList when the given list index is
// neither an existing list nor exactly len(lists) (i.e. not a contiguous
// append), and by SetListRanges for any index that is not an existing list.
type IndexOutOfBoundsError struct {
	Index  int
	Length int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("sliding sync: list index %d out of bounds (have %d lists; only an existing index or %d, a contiguous append, is valid)", e.Index, e.Length, e.Length)
}
