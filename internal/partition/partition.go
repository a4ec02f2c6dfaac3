// Package partition implements the deterministic range splitting used at both
// distribution levels of the system: the client splits [1,k] across servers,
// and each server splits its assigned sub-range across worker goroutines.
//
// A Range is the unit of work distribution, the equivalent of a shard in a
// keyed system: a contiguous, non-overlapping slice of the full interval that
// exactly one worker owns. Partitioning is pure arithmetic with no randomness,
// so the same inputs always produce the same assignment.
package partition

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when begin is zero or exceeds end.
var ErrInvalidRange = errors.New("invalid range")

// ErrInvalidWorkerCount is returned when the requested partition count cannot
// cover the range: zero workers, or more workers than elements. Clamping the
// worker count down to the element count is the caller's job, not ours.
var ErrInvalidWorkerCount = errors.New("invalid worker count")

// Range is a contiguous integer interval [Begin, End], both ends inclusive.
// The factorial domain starts at 1, so Begin is always >= 1 for valid ranges.
type Range struct {
	Begin uint64
	End   uint64
}

// Count returns the number of elements in the range.
func (r Range) Count() uint64 {
	return r.End - r.Begin + 1
}

// String renders the range in the [begin, end] form used in logs.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Begin, r.End)
}

// Split divides [begin, end] into exactly n contiguous, non-overlapping
// ranges whose union is the whole interval. Sizes differ by at most one
// element: every range gets floor(count/n) elements and the first
// count mod n ranges get one extra, so earlier workers carry the larger
// chunks.
//
// Requires 1 <= begin <= end, 1 <= n <= end-begin+1. Callers with more
// workers than elements must clamp first (see ClampWorkers).
func Split(begin, end uint64, n int) ([]Range, error) {
	if begin == 0 || begin > end {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, begin, end)
	}
	count := end - begin + 1
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, n)
	}
	if uint64(n) > count {
		return nil, fmt.Errorf("%w: %d workers for %d elements", ErrInvalidWorkerCount, n, count)
	}

	base := count / uint64(n)
	extra := count % uint64(n)

	ranges := make([]Range, 0, n)
	cur := begin
	for i := 0; i < n; i++ {
		size := base
		if uint64(i) < extra {
			size++
		}
		r := Range{Begin: cur, End: cur + size - 1}
		ranges = append(ranges, r)
		cur = r.End + 1
	}
	return ranges, nil
}

// ClampWorkers reduces a requested worker count so it never exceeds the
// number of elements to distribute. With fewer elements than workers each
// remaining worker gets exactly one element and the surplus workers stay
// idle.
func ClampWorkers(n int, count uint64) int {
	if n < 1 {
		return 1
	}
	if uint64(n) > count {
		return int(count)
	}
	return n
}
