package pool

import (
	"errors"
	"fmt"
)

// MaxGridPoints is the largest grid Grid expands.
const MaxGridPoints = 1 << 20

// ErrGridTooLarge is returned by GridSize for grids over MaxGridPoints.
var ErrGridTooLarge = errors.New("grid too large")

// Axis is one named dimension of a parameter grid.
type Axis struct {
	Name   string
	Values []any
}

// Grid expands axes into their cartesian product.
//
// The first axis varies fastest and the last axis slowest, and each point's
// Args list the axes in the order given. An axis without values, or no axes
// at all, yields an empty grid. Axis names are expected to be unique. Grid
// panics when the product exceeds MaxGridPoints; check GridSize first for
// axes that come from user input.
//
// Example:
//
//	Grid(Axis{"a", []any{1, 2}}, Axis{"b", []any{"x", "y"}})
//	// [{a:1 b:x} {a:2 b:x} {a:1 b:y} {a:2 b:y}]
func Grid(axes ...Axis) []Args {
	total, err := GridSize(axes...)
	if err != nil {
		panic(err)
	}
	if total == 0 {
		return []Args{}
	}

	points := make([]Args, total)
	for i := range points {
		point := make(Args, len(axes))
		rest := i
		for j, ax := range axes {
			n := len(ax.Values)
			point[j] = Arg{Name: ax.Name, Value: ax.Values[rest%n]}
			rest /= n
		}
		points[i] = point
	}
	return points
}

// GridSize returns the number of points axes expand to, or ErrGridTooLarge
// when that exceeds MaxGridPoints.
func GridSize(axes ...Axis) (int, error) {
	if len(axes) == 0 {
		return 0, nil
	}
	for _, ax := range axes {
		if len(ax.Values) == 0 {
			return 0, nil
		}
	}

	total := 1
	for _, ax := range axes {
		n := len(ax.Values)
		if total > MaxGridPoints/n {
			return 0, fmt.Errorf("%w: more than %d points", ErrGridTooLarge, MaxGridPoints)
		}
		total *= n
	}
	return total, nil
}
