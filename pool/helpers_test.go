package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

var errBoom = errors.New("boom")

// double returns twice the "n" argument.
func double(_ context.Context, args Args) (any, error) {
	n, err := args.GetInt("n")
	if err != nil {
		return nil, err
	}
	return n * 2, nil
}

// jittered is double with a random delay so tasks finish out of order.
func jittered(ctx context.Context, args Args) (any, error) {
	time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	return double(ctx, args)
}

// failingAt returns a TaskFunc that fails for the task whose "n" equals bad.
func failingAt(bad int) TaskFunc {
	return func(ctx context.Context, args Args) (any, error) {
		n, err := args.GetInt("n")
		if err != nil {
			return nil, err
		}
		if n == bad {
			return nil, fmt.Errorf("task %d: %w", n, errBoom)
		}
		return double(ctx, args)
	}
}

// numbered builds count specs with "n" set to 0..count-1.
func numbered(count int, fn TaskFunc) []TaskSpec {
	specs := make([]TaskSpec, count)
	for i := range specs {
		specs[i] = TaskSpec{Func: fn, Args: NewArgs("n", i)}
	}
	return specs
}

func widthName(width int) string {
	return fmt.Sprintf("width=%d", width)
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
