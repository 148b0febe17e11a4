package pipeline

import "context"

// Sequence is the pull-based lazy sequence contract every stage function
// consumes or produces: call Next repeatedly until it reports exhaustion or
// raises.
type Sequence[T any] interface {
	// Next returns the next item. ok is false once the sequence is
	// exhausted; err is non-nil if producing the next item failed, in
	// which case ok is always false and no further calls to Next are
	// made.
	Next() (item T, ok bool, err error)
}

// upstreamFailure is returned by inputSequence.Next when the value pulled
// off the channel was an ERR marker rather than a genuine failure in the
// current worker's own code. Workers check for it with errors.As before
// classifying an error as their own. remaining is how many more terminal
// markers this worker still owes its input channel before it has fully
// drained its share of the predecessor's output.
type upstreamFailure struct {
	we        *WorkerError
	remaining int
}

func (u *upstreamFailure) Error() string { return u.we.Error() }

// SliceSequence adapts a plain slice into a Sequence, the simplest possible
// producer building block.
func SliceSequence[T any](items []T) Sequence[T] {
	return &sliceSequence[T]{items: items}
}

type sliceSequence[T any] struct {
	items []T
	idx   int
}

func (s *sliceSequence[T]) Next() (T, bool, error) {
	var zero T
	if s.idx >= len(s.items) {
		return zero, false, nil
	}

	item := s.items[s.idx]
	s.idx++

	return item, true, nil
}

// FuncSequence adapts a pull function into a Sequence, for producers that
// want to generate items lazily (e.g. reading a file or a cursor) rather
// than building a slice up front.
func FuncSequence[T any](next func() (T, bool, error)) Sequence[T] {
	return funcSequence[T]{next: next}
}

type funcSequence[T any] struct {
	next func() (T, bool, error)
}

func (f funcSequence[T]) Next() (T, bool, error) {
	return f.next()
}

// inputSequence is the channel-backed Sequence a transformer stage's worker
// is given as input. All of a stage's workers share one Channel and each
// owns its own inputSequence over it, but termination is counted, not
// first-marker-wins: every worker of the predecessor stage puts one
// terminating marker per worker on this side of the channel, so each of
// this stage's own workers independently sees "expected" (the predecessor's
// worker count) terminating markers over the full run. A worker only
// considers its input exhausted once it has personally counted "expected"
// terminating markers — this is what makes fan-in (more predecessor workers
// than successor workers, the map-reduce case) and fan-out (fewer
// predecessor workers than successor workers) both complete: nobody stops
// early just because a marker happened to be the first thing they pulled.
// The channel's own close acts as a backstop for workers that otherwise
// stall before the count is reached.
type inputSequence[T any] struct {
	ctx        context.Context //nolint:containedctx // carried for future cancellation-aware reads; not used to cancel today
	in         *Channel[envelope[T]]
	expected   int
	seen       int
	terminated bool
}

func newInputSequence[T any](ctx context.Context, in *Channel[envelope[T]], expected int) *inputSequence[T] {
	return &inputSequence[T]{ctx: ctx, in: in, expected: expected}
}

func (s *inputSequence[T]) Next() (T, bool, error) {
	var zero T
	if s.terminated {
		return zero, false, nil
	}

	for {
		env, ok := s.in.Get()
		if !ok {
			s.terminated = true
			return zero, false, nil
		}

		switch env.kind {
		case itemMarker:
			return env.item, true, nil
		case endMarker:
			s.seen++
			if s.seen >= s.expected {
				s.terminated = true
				return zero, false, nil
			}
		case errMarker:
			s.seen++
			s.terminated = true

			return zero, false, &upstreamFailure{we: env.err, remaining: s.expected - s.seen}
		default:
			continue
		}
	}
}

// remaining reports how many more terminal markers this sequence still
// needs to see before its share of the predecessor's output is fully
// drained. It is 0 once Next has reported exhaustion normally.
func (s *inputSequence[T]) remaining() int {
	if s.terminated {
		return 0
	}

	return s.expected - s.seen
}

// mapSequence adapts a one-item-in one-item-out function over an input
// Sequence, the engine-side half of AddMapStage and MapDecorator.
func mapSequence[I, O any](ctx context.Context, in Sequence[I], fn func(context.Context, I) (O, error)) Sequence[O] {
	return FuncSequence(func() (O, bool, error) {
		var zero O

		item, ok, err := in.Next()
		if err != nil || !ok {
			return zero, false, err
		}

		out, err := fn(ctx, item)
		if err != nil {
			return zero, false, err
		}

		return out, true, nil
	})
}

// drainInput keeps reading and discarding from in until it has observed
// remaining terminating markers (END or ERR) or the channel closes: a
// worker whose own function raised, or that already saw an ERR marker
// before reaching its full expected count, must not strand any predecessor
// worker still blocked trying to Put onto a full channel.
func drainInput[T any](in *Channel[envelope[T]], remaining int) {
	for remaining > 0 {
		env, ok := in.Get()
		if !ok {
			return
		}

		if env.kind != itemMarker {
			remaining--
		}
	}
}
