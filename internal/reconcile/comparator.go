package reconcile

import (
	"fmt"
	"time"

	"github.com/c5t/c5t/internal/types"
)

// Comparator orders two mutation timestamps. Compare returns a positive
// number when incoming is later than existing, negative when earlier and
// zero when they are indistinguishable. An error means a timestamp could
// not be interpreted.
type Comparator interface {
	Compare(existing, incoming string) (int, error)
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(existing, incoming string) (int, error)

// Compare calls f.
func (f ComparatorFunc) Compare(existing, incoming string) (int, error) {
	return f(existing, incoming)
}

// TimestampComparator compares wall-clock timestamps after truncating them
// to Granularity. The zero value uses one second, the resolution of the
// canonical timestamp layout.
type TimestampComparator struct {
	Granularity time.Duration
}

// Compare implements Comparator.
func (c TimestampComparator) Compare(existing, incoming string) (int, error) {
	te, err := types.ParseTimestamp(existing)
	if err != nil {
		return 0, fmt.Errorf("local timestamp: %w", err)
	}
	ti, err := types.ParseTimestamp(incoming)
	if err != nil {
		return 0, fmt.Errorf("incoming timestamp: %w", err)
	}

	g := c.Granularity
	if g <= 0 {
		g = time.Second
	}
	te, ti = te.Truncate(g), ti.Truncate(g)

	switch {
	case ti.After(te):
		return 1, nil
	case ti.Before(te):
		return -1, nil
	default:
		return 0, nil
	}
}
