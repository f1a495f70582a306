package kernel

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy selects how a fan-out reacts to task failures.
type Policy int

const (
	// FailFast fails the whole group on the first error and discards every
	// sibling result.
	FailFast Policy = iota
	// CollectAll waits for every task and reports each outcome.
	CollectAll
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case CollectAll:
		return "collect-all"
	default:
		return "unknown"
	}
}

// Outcome is the result of one task in a group.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Gather starts fn for every index in [0, n) at once, waits for the group, and
// returns outcomes in index order regardless of completion order.
//
// Under FailFast the first error is returned alone with nil outcomes. Under
// CollectAll every outcome is returned together with the joined errors.
func Gather[T any](ctx context.Context, policy Policy, n int, fn func(ctx context.Context, i int) (T, error)) ([]Outcome[T], error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]Outcome[T], n)

	if policy == FailFast {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				v, err := fn(gctx, i)
				if err != nil {
					return err
				}
				out[i] = Outcome[T]{Value: v}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := fn(ctx, i)
			out[i] = Outcome[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()

	var errs []error
	for _, o := range out {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return out, errors.Join(errs...)
}

// Values strips outcomes down to their values.
func Values[T any](outcomes []Outcome[T]) []T {
	vals := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		vals = append(vals, o.Value)
	}
	return vals
}
