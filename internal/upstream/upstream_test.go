package upstream

import "testing"

func TestBlockIndexRange(t *testing.T) {
	cases := []struct {
		height   int64
		lo, hi   int64
	}{
		{0, 0, 9999},
		{1, 10000, 19999},
		{800000, 8000000000, 8000009999},
	}
	for _, c := range cases {
		lo, hi := BlockIndexRange(c.height)
		if lo != c.lo || hi != c.hi {
			t.Errorf("BlockIndexRange(%d) = (%d, %d), want (%d, %d)", c.height, lo, hi, c.lo, c.hi)
		}
	}
}
