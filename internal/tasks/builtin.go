package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utkarsh5026/batchrun/pool"
)

// ErrRequestedFailure is returned by sum when its "fail" argument is true.
var ErrRequestedFailure = errors.New("failure requested by task arguments")

// Echo returns its arguments as a map.
func Echo(_ context.Context, args pool.Args) (any, error) {
	return args.Map(), nil
}

// Sleep waits for the "duration" argument, then returns the "value"
// argument, or nil if there is none. It returns early with ctx's error.
func Sleep(ctx context.Context, args pool.Args) (any, error) {
	d, err := args.GetDuration("duration")
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v, _ := args.Get("value")
	return v, nil
}

// Sum adds up the "values" list, or every numeric argument when there is
// no list. A true "fail" argument makes it fail instead.
func Sum(_ context.Context, args pool.Args) (any, error) {
	if fail, err := args.GetBool("fail"); err == nil && fail {
		return nil, ErrRequestedFailure
	}

	if args.Has("values") {
		values, err := args.GetSlice("values")
		if err != nil {
			return nil, err
		}
		total := 0.0
		for i, v := range values {
			f, ok := pool.ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("values[%d]: %v is %T, not a number", i, v, v)
			}
			total += f
		}
		return total, nil
	}

	total := 0.0
	for _, arg := range args {
		if f, ok := pool.ToFloat(arg.Value); ok {
			total += f
		}
	}
	return total, nil
}
