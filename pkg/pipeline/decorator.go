package pipeline

import "context"

// Decorator is a reusable preset of Options that binds worker count and
// queue size so call sites don't repeat them. It is deliberately just a
// slice of Options — a factory bound to a user function as well is what
// ProducerDecorator/MapDecorator below provide, closing over the function
// itself too.
func Decorator(workers, qsize int) []Option {
	return []Option{WithWorkers(workers), WithQueueSize(qsize)}
}

// ProducerDecorator wraps a producer function as a factory bound to a fixed
// worker count and queue size, equivalent to stage_decorator applied to a
// producer: calling the returned factory with a pipeline and name produces
// a concrete, ready-to-run stage.
func ProducerDecorator[O any](workers, qsize int, fn ProducerFunc[O]) func(p *Pipeline, name string) (*StageHandle[O], error) {
	opts := Decorator(workers, qsize)

	return func(p *Pipeline, name string) (*StageHandle[O], error) {
		return AddProducer(p, name, fn, opts...)
	}
}

// StageDecorator is the transformer equivalent of ProducerDecorator.
func StageDecorator[I, O any](workers, qsize int, fn TransformFunc[I, O]) func(p *Pipeline, name string, input *StageHandle[I]) (*StageHandle[O], error) {
	opts := Decorator(workers, qsize)

	return func(p *Pipeline, name string, input *StageHandle[I]) (*StageHandle[O], error) {
		return AddStage(p, name, input, fn, opts...)
	}
}

// MapDecorator is the map_stage_decorator(workers, qsize) sugar: the user
// function takes one input element and returns one output element, and the
// engine handles iteration over the shared input sequence.
func MapDecorator[I, O any](workers, qsize int, fn func(ctx context.Context, item I) (O, error)) func(p *Pipeline, name string, input *StageHandle[I]) (*StageHandle[O], error) {
	opts := Decorator(workers, qsize)

	return func(p *Pipeline, name string, input *StageHandle[I]) (*StageHandle[O], error) {
		return AddMapStage(p, name, input, fn, opts...)
	}
}
