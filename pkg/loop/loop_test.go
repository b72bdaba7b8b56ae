package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsforge/relearn/pkg/loop"
	"github.com/opsforge/relearn/pkg/utils/try"
)

func TestStart(t *testing.T) {
	t.Run("it repeats task until it Breaks", func(t *testing.T) {
		ctx := context.Background()

		expected := 10
		actual, err := loop.Start(ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
			new := v + 1
			if expected <= new {
				return new, loop.Break(nil)
			}
			return new, loop.Continue(0)
		})

		if err != nil {
			t.Fatal(err)
		}
		if actual != expected {
			t.Errorf("unmatch: (actual, expected) = (%d, %d)", actual, expected)
		}
	})

	t.Run("it breaks with the error of Break(err)", func(t *testing.T) {
		ctx := context.Background()
		expectedErr := errors.New("fake error")

		actual, err := loop.Start(ctx, 0, func(ctx context.Context, v int) (int, loop.Next) {
			if 3 <= v {
				return v, loop.Break(expectedErr)
			}
			return v + 1, loop.Continue(0)
		})

		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if actual != 3 {
			t.Errorf("the last value is not returned: %d", actual)
		}
	})

	t.Run("when context has been done before starting, it does nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		actual, err := loop.Start(
			ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
				return v + 1, loop.Continue(0)
			},
		)

		if !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
		if actual != 1 {
			t.Errorf("loop does not honour context")
		}
	})

	t.Run("it stops between iterations when context gets done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		actual, err := loop.Start(
			ctx, 0, func(ctx context.Context, v int) (int, loop.Next) {
				if v == 2 {
					cancel()
					// long enough that only cancellation can end the wait
					return v + 1, loop.Continue(time.Hour)
				}
				return v + 1, loop.Continue(0)
			},
		)

		if !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
		if actual != 3 {
			t.Errorf("unexpected iterations: %d", actual)
		}
	})

	t.Run("it passes deadlined context when WithTimeout is passed", func(t *testing.T) {
		ctx := context.Background()
		timeout := 100 * time.Millisecond

		try.To(loop.Start(
			ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
				now := time.Now()
				if deadline, ok := ctx.Deadline(); !ok {
					t.Errorf("deadline is not set")
				} else if !(deadline.Sub(now) <= timeout) {
					t.Errorf("deadline too far: %s (now = %s)", deadline, now)
				}

				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
			loop.WithTimeout(timeout),
		)).OrFatal(t)
	})

	t.Run("it passes deadline-free context when WithTimeout is not passed", func(t *testing.T) {
		ctx := context.Background()

		try.To(loop.Start(
			ctx, 1, func(ctx context.Context, v int) (int, loop.Next) {
				if deadline, ok := ctx.Deadline(); ok {
					t.Errorf("deadline is set: %s", deadline)
				}

				if 3 <= v {
					return v + 1, loop.Break(nil)
				}
				return v + 1, loop.Continue(0)
			},
		)).OrFatal(t)
	})
}
