package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// StageHandle is the typed output of a stage: its output channel and the
// bookkeeping the next AddStage call in the chain needs (worker count, for
// per-worker sentinel accounting, and name, for worker identifiers and
// instrumentation). followers is how many terminating-marker copies each of
// this stage's own workers must put onto output — one per worker of
// whichever stage reads it next, so the downstream side can count its way
// to exhaustion regardless of how the worker counts on either side compare.
// It defaults to 1 (a single logical reader, e.g. Results/Execute) and is
// set to the real downstream worker count retroactively by that stage's own
// AddStage call, which always happens before Run starts any goroutine.
type StageHandle[O any] struct {
	name      string
	workers   int
	followers int
	output    *Channel[envelope[O]]
}

// ProducerFunc is the first stage's user function: no input, just bound
// arguments (captured in the closure) and a lazy sequence of results.
type ProducerFunc[O any] func(ctx context.Context) (Sequence[O], error)

// TransformFunc is every subsequent stage's user function: an input
// sequence plus bound arguments, producing a lazy sequence of results.
type TransformFunc[I, O any] func(ctx context.Context, in Sequence[I]) (Sequence[O], error)

func workerID(stageName string, idx int) string {
	return fmt.Sprintf("%s-%d", stageName, idx)
}

// AddProducer adds the pipeline's first stage: a producer with no input,
// called with only its bound arguments (captured by fn's closure).
func AddProducer[O any](p *Pipeline, name string, fn ProducerFunc[O], opts ...Option) (*StageHandle[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	cfg := applyOptions(opts...)
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "stage %q", name)
	}

	if err := p.prepareStage(name, cfg.workers); err != nil {
		return nil, err
	}

	output := NewChannel[envelope[O]](cfg.qsize)
	handle := &StageHandle[O]{name: name, workers: cfg.workers, followers: 1, output: output}

	starter := func(ctx context.Context) {
		grp, gctx := errgroup.WithContext(ctx)

		for i := 0; i < cfg.workers; i++ {
			idx := i
			grp.Go(func() error {
				runProducerWorker(gctx, p, name, workerID(name, idx), fn, handle)
				return nil
			})
		}

		_ = grp.Wait()
		output.Close()
	}

	if err := p.registerStage(starter, output); err != nil {
		return nil, err
	}

	return handle, nil
}

// AddStage adds a transformer stage downstream of input: its worker
// function receives the shared input sequence plus its bound arguments.
func AddStage[I, O any](p *Pipeline, name string, input *StageHandle[I], fn TransformFunc[I, O], opts ...Option) (*StageHandle[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	if input == nil {
		return nil, ErrInputMustBeSet
	}

	cfg := applyOptions(opts...)
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "stage %q", name)
	}

	if err := p.prepareStage(name, cfg.workers); err != nil {
		return nil, err
	}

	// This stage's workers are the ones reading input.output: every worker
	// of the predecessor stage must emit one terminating marker per worker
	// here, so that a fan-in (fewer workers here than upstream) or fan-out
	// (more workers here than upstream) both converge on the correct count.
	input.followers = cfg.workers

	output := NewChannel[envelope[O]](cfg.qsize)
	handle := &StageHandle[O]{name: name, workers: cfg.workers, followers: 1, output: output}

	starter := func(ctx context.Context) {
		grp, gctx := errgroup.WithContext(ctx)

		for i := 0; i < cfg.workers; i++ {
			idx := i
			grp.Go(func() error {
				runTransformWorker(gctx, p, name, input.name, input.workers, workerID(name, idx), input.output, fn, handle)
				return nil
			})
		}

		_ = grp.Wait()
		output.Close()
	}

	if err := p.registerStage(starter, output); err != nil {
		return nil, err
	}

	return handle, nil
}

// AddMapStage adds a one-item-in one-item-out transformer stage; the engine
// handles pulling from the input sequence and pushing each mapped result, so
// the caller only supplies a per-item function.
func AddMapStage[I, O any](p *Pipeline, name string, input *StageHandle[I], fn func(ctx context.Context, item I) (O, error), opts ...Option) (*StageHandle[O], error) {
	return AddStage(p, name, input, func(ctx context.Context, in Sequence[I]) (Sequence[O], error) {
		return mapSequence(ctx, in, fn), nil
	}, opts...)
}

func runProducerWorker[O any](ctx context.Context, p *Pipeline, stageName, id string, fn ProducerFunc[O], handle *StageHandle[O]) {
	out := handle.output

	seq, err := fn(ctx)

	if err == nil {
		err = pumpSequence(seq, stageName, "", out, p)
	}

	if err != nil {
		emitTerminal(out, handle.followers, errEnvelope[O](id, newWorkerError(id, err)))
		return
	}

	emitTerminal(out, handle.followers, endEnvelope[O](id))
}

func runTransformWorker[I, O any](ctx context.Context, p *Pipeline, stageName, inputStageName string, inputWorkers int, id string, in *Channel[envelope[I]], fn TransformFunc[I, O], handle *StageHandle[O]) {
	out := handle.output
	inSeq := newInputSequence(ctx, in, inputWorkers)

	outSeq, err := fn(ctx, inSeq)

	if err == nil {
		err = pumpSequence(outSeq, stageName, inputStageName, out, p)
	}

	if err != nil {
		var upstream *upstreamFailure
		if errors.As(err, &upstream) {
			// We already consumed the terminating ERR marker via our input
			// sequence, but its followers (the predecessor's remaining
			// workers) still owe us upstream.remaining more terminal
			// markers before our share of the input is fully drained.
			drainInput(in, upstream.remaining)
			emitTerminal(out, handle.followers, errEnvelope[O](id, upstream.we))

			return
		}

		// The worker's own function raised, not the upstream sequence.
		// Drain whatever remains of our shared input so every predecessor
		// worker that still owes us a marker is never left blocked trying
		// to Put onto a full channel.
		drainInput(in, inSeq.remaining())

		emitTerminal(out, handle.followers, errEnvelope[O](id, newWorkerError(id, err)))

		return
	}

	emitTerminal(out, handle.followers, endEnvelope[O](id))
}

// emitTerminal puts copies identical terminating markers (END or ERR) onto
// out, one per downstream worker expected to count it, so that fan-in and
// fan-out both converge on the right total regardless of how the worker
// counts on either side of out compare.
func emitTerminal[O any](out *Channel[envelope[O]], copies int, env envelope[O]) {
	if copies < 1 {
		copies = 1
	}

	for i := 0; i < copies; i++ {
		_ = out.Put(env)
	}
}

// pumpSequence drains seq onto out, one item at a time, recording
// per-item/per-transport timings when the pipeline has measurement turned
// on and the stage has an input stage; producer stages record no timings.
func pumpSequence[O any](seq Sequence[O], stageName, inputStageName string, out *Channel[envelope[O]], p *Pipeline) error {
	for {
		start := time.Now()

		item, ok, err := seq.Next()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		computeElapsed := time.Since(start)

		if err := out.Put(itemEnvelope(item)); err != nil {
			return err
		}

		if p.measure != nil && inputStageName != "" {
			mt := p.measure.Steps[stageName]
			if mt != nil {
				mt.AddDuration(computeElapsed)
				mt.AddTransportDuration(inputStageName, time.Since(start))
			}
		}
	}
}
