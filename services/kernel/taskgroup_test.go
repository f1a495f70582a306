package kernel

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestGatherPreservesIndexOrder(t *testing.T) {
	for _, policy := range []Policy{FailFast, CollectAll} {
		t.Run(policy.String(), func(t *testing.T) {
			outcomes, err := Gather(context.Background(), policy, 5, func(ctx context.Context, i int) (int, error) {
				// Later indexes finish first.
				time.Sleep(time.Duration(5-i) * time.Millisecond)
				return i * 10, nil
			})
			if err != nil {
				t.Fatalf("Gather() error = %v", err)
			}
			if got, want := Values(outcomes), []int{0, 10, 20, 30, 40}; !reflect.DeepEqual(got, want) {
				t.Fatalf("values = %v, want %v", got, want)
			}
		})
	}
}

func TestGatherFailFastDropsResults(t *testing.T) {
	boom := errors.New("boom")
	outcomes, err := Gather(context.Background(), FailFast, 4, func(ctx context.Context, i int) (string, error) {
		if i == 2 {
			return "", boom
		}
		return "ok", nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if outcomes != nil {
		t.Fatalf("outcomes = %v, want nil", outcomes)
	}
}

func TestGatherFailFastCancelsSiblings(t *testing.T) {
	var cancelled atomic.Int32
	_, err := Gather(context.Background(), FailFast, 3, func(ctx context.Context, i int) (int, error) {
		if i == 0 {
			return 0, errors.New("first")
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
		case <-time.After(time.Second):
		}
		return i, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if cancelled.Load() != 2 {
		t.Fatalf("cancelled siblings = %d, want 2", cancelled.Load())
	}
}

func TestGatherCollectAllReportsEveryOutcome(t *testing.T) {
	outcomes, err := Gather(context.Background(), CollectAll, 3, func(ctx context.Context, i int) (int, error) {
		if i == 1 {
			return 0, errors.New("middle")
		}
		return i, nil
	})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil || outcomes[1].Err == nil {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[2].Value != 2 {
		t.Fatalf("outcome[2] = %d, want 2", outcomes[2].Value)
	}
}

func TestGatherEmpty(t *testing.T) {
	outcomes, err := Gather(context.Background(), FailFast, 0, func(ctx context.Context, i int) (int, error) {
		t.Fatal("fn called for empty group")
		return 0, nil
	})
	if err != nil || outcomes != nil {
		t.Fatalf("Gather(0) = %v, %v", outcomes, err)
	}
}

func TestRingBoundsHistory(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	if got := r.items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("items = %v, want [3 4 5]", got)
	}
	if last, ok := r.last(); !ok || last != 5 {
		t.Fatalf("last = %d, %v", last, ok)
	}

	unbounded := newRing[int](0)
	for i := 0; i < 10; i++ {
		unbounded.push(i)
	}
	if unbounded.len() != 10 {
		t.Fatalf("unbounded len = %d", unbounded.len())
	}
	if _, ok := newRing[int](2).last(); ok {
		t.Fatal("empty ring reported a last entry")
	}
}
