package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// Results starts the pipeline (if it has not been started already) and
// returns a lazy sequence over the last stage's output: user items only.
// END markers are counted against last.workers; if an ERR marker is seen,
// iteration keeps draining the remaining markers so no worker is left
// blocked, then Next returns a *TaskException once the drain completes.
// Only the first observed error surfaces; later ones are discarded.
func Results[O any](ctx context.Context, p *Pipeline, last *StageHandle[O]) (Sequence[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	if last == nil {
		return nil, ErrInputMustBeSet
	}

	p.Run(ctx)
	p.finalVertex(last.name)

	r := &resultSequence[O]{p: p, in: last.output, remaining: last.workers}

	return r, nil
}

type resultSequence[O any] struct {
	p         *Pipeline
	in        *Channel[envelope[O]]
	remaining int
	firstErr  *WorkerError
	done      bool
}

func (r *resultSequence[O]) Next() (O, bool, error) {
	var zero O

	if r.done {
		return zero, false, nil
	}

	for {
		env, ok := r.in.Get()
		if !ok {
			// Channel closed with fewer markers observed than expected
			// (e.g. abandonment via Cancel); treat as a clean end.
			return r.finish()
		}

		switch env.kind {
		case itemMarker:
			return env.item, true, nil
		case endMarker:
			r.remaining--
			if r.remaining <= 0 {
				return r.finish()
			}
		case errMarker:
			if r.firstErr == nil {
				r.firstErr = env.err
			}

			r.remaining--
			if r.remaining <= 0 {
				return r.finish()
			}
		}
	}
}

func (r *resultSequence[O]) finish() (O, bool, error) {
	var zero O

	r.done = true

	if err := r.p.finish(); err != nil {
		return zero, false, err
	}

	if r.firstErr != nil {
		return zero, false, newTaskException(r.firstErr)
	}

	return zero, false, nil
}

// Execute asserts the pipeline produces exactly one item and returns it. It
// fails with ErrWrongCardinality if zero or more than one item is produced.
func Execute[O any](ctx context.Context, p *Pipeline, last *StageHandle[O]) (O, error) {
	var zero O

	seq, err := Results(ctx, p, last)
	if err != nil {
		return zero, err
	}

	item, ok, err := seq.Next()
	if err != nil {
		return zero, err
	}

	if !ok {
		return zero, errors.Wrap(ErrWrongCardinality, "pipeline produced no items")
	}

	_, ok, err = seq.Next()
	if err != nil {
		return zero, err
	}

	if ok {
		return zero, errors.Wrap(ErrWrongCardinality, "pipeline produced more than one item")
	}

	return item, nil
}
