package sync3

import "testing"

func TestSliceRangesValid(t *testing.T) {
	cases := []struct {
		ranges SliceRanges
		valid  bool
	}{
		{SliceRanges{{0, 9}}, true},
		{SliceRanges{{0, 9}, {20, 29}}, true},
		{SliceRanges{{5, 4}}, false},
		{SliceRanges{{-1, 9}}, false},
		{nil, true},
	}
	for _, c := range cases {
		if got := c.ranges.Valid(); got != c.valid {
			t.Errorf("%v: Valid() = %v want %v", c.ranges, got, c.valid)
		}
	}
}

func TestSliceRangesInside(t *testing.T) {
	r := SliceRanges{{0, 9}, {20, 29}}
	for _, i := range []int64{0, 5, 9, 20, 29} {
		if !r.Inside(i) {
			t.Errorf("expected %d to be inside %v", i, r)
		}
	}
	for _, i := range []int64{10, 19, 30, -1} {
		if r.Inside(i) {
			t.Errorf("expected %d to be outside %v", i, r)
		}
	}
}

func TestSliceRangesCloneIndependence(t *testing.T) {
	r := SliceRanges{{0, 9}}
	clone := r.Clone()
	clone[0][1] = 999
	if r[0][1] != 9 {
		t.Fatalf("Clone aliased the original: %v", r)
	}
}
