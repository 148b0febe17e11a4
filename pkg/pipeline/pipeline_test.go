package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlewood/flowline/pkg/pipeline"
)

func generator(n int) pipeline.ProducerFunc[int] {
	return func(_ context.Context) (pipeline.Sequence[int], error) {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}

		return pipeline.SliceSequence(items), nil
	}
}

func drain[O any](t *testing.T, seq pipeline.Sequence[O]) ([]O, error) {
	t.Helper()

	var out []O

	for {
		item, ok, err := seq.Next()
		if err != nil {
			return out, err
		}

		if !ok {
			return out, nil
		}

		out = append(out, item)
	}
}

func TestHappyPathSingleWorker(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(10))
	require.NoError(t, err)

	doubled, err := pipeline.AddMapStage(p, "double", gen, func(_ context.Context, item int) (int, error) {
		return item * 2, nil
	})
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, doubled)
	require.NoError(t, err)

	items, err := drain(t, seq)
	require.NoError(t, err)
	require.Len(t, items, 10)

	for i, item := range items {
		assert.Equal(t, i*2, item, "single worker must preserve input order")
	}
}

func TestParallelWorkersPreserveCompleteness(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(200))
	require.NoError(t, err)

	doubled, err := pipeline.AddMapStage(p, "double", gen, func(_ context.Context, item int) (int, error) {
		return item * 2, nil
	}, pipeline.WithWorkers(4))
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, doubled)
	require.NoError(t, err)

	items, err := drain(t, seq)
	require.NoError(t, err)
	require.Len(t, items, 200)

	sort.Ints(items)

	for i, item := range items {
		assert.Equal(t, i*2, item, "every input must appear exactly once regardless of worker interleaving")
	}
}

func TestTwoStageChain(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	words := []string{" Hello ", " WORLD ", " Go "}

	gen, err := pipeline.AddProducer(p, "source", func(_ context.Context) (pipeline.Sequence[string], error) {
		return pipeline.SliceSequence(words), nil
	})
	require.NoError(t, err)

	stripped, err := pipeline.AddMapStage(p, "strip", gen, func(_ context.Context, s string) (string, error) {
		return strings.TrimSpace(s), nil
	})
	require.NoError(t, err)

	upper, err := pipeline.AddMapStage(p, "upper", stripped, func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, upper)
	require.NoError(t, err)

	items, err := drain(t, seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO", "WORLD", "GO"}, items)
}

func TestExecuteSingleAggregatedResult(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(5))
	require.NoError(t, err)

	summed, err := pipeline.AddStage(p, "sum", gen, func(_ context.Context, in pipeline.Sequence[int]) (pipeline.Sequence[int], error) {
		total := 0

		for {
			item, ok, err := in.Next()
			if err != nil {
				return nil, err
			}

			if !ok {
				break
			}

			total += item
		}

		return pipeline.SliceSequence([]int{total}), nil
	})
	require.NoError(t, err)

	result, err := pipeline.Execute(context.Background(), p, summed)
	require.NoError(t, err)
	assert.Equal(t, 0+1+2+3+4, result)
}

func TestReduceStageWithFewerWorkersThanItsProducer(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	const (
		producerWorkers = 4
		itemsPerWorker  = 1000
	)

	gen, err := pipeline.AddProducer(p, "generate", func(_ context.Context) (pipeline.Sequence[int], error) {
		items := make([]int, itemsPerWorker)
		for i := range items {
			items[i] = i
		}

		return pipeline.SliceSequence(items), nil
	}, pipeline.WithWorkers(producerWorkers))
	require.NoError(t, err)

	reduced, err := pipeline.AddStage(p, "reduce", gen, func(_ context.Context, in pipeline.Sequence[int]) (pipeline.Sequence[int], error) {
		total := 0

		for {
			item, ok, err := in.Next()
			if err != nil {
				return nil, err
			}

			if !ok {
				break
			}

			total += item
		}

		return pipeline.SliceSequence([]int{total}), nil
	}, pipeline.WithWorkers(1))
	require.NoError(t, err)

	result, err := pipeline.Execute(context.Background(), p, reduced)
	require.NoError(t, err)

	want := 0
	for i := 0; i < itemsPerWorker; i++ {
		want += i
	}

	want *= producerWorkers

	assert.Equal(t, want, result, "a lone reducer worker must see every terminal marker from all four producer workers before summing")
}

func TestExecuteFailsOnWrongCardinality(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(3))
	require.NoError(t, err)

	_, err = pipeline.Execute(context.Background(), p, gen)
	assert.ErrorIs(t, err, pipeline.ErrWrongCardinality)
}

func TestErrorSurfacesAsTaskException(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(20))
	require.NoError(t, err)

	boom := errors.New("refused item 7")

	stage, err := pipeline.AddMapStage(p, "reject-seven", gen, func(_ context.Context, item int) (int, error) {
		if item == 7 {
			return 0, boom
		}

		return item, nil
	}, pipeline.WithWorkers(3), pipeline.WithQueueSize(2))
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, stage)
	require.NoError(t, err)

	_, err = drain(t, seq)
	require.Error(t, err)

	var taskErr *pipeline.TaskException

	require.ErrorAs(t, err, &taskErr)
	assert.Contains(t, taskErr.WorkerID, "reject-seven-")
	assert.Contains(t, taskErr.Message, "refused item 7")
}

func TestBoundedQueueStageDeliversEveryItem(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(50))
	require.NoError(t, err)

	passthrough, err := pipeline.AddMapStage(p, "identity", gen, func(_ context.Context, item int) (int, error) {
		return item, nil
	}, pipeline.WithQueueSize(5))
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, passthrough)
	require.NoError(t, err)

	items, err := drain(t, seq)
	require.NoError(t, err)
	assert.Len(t, items, 50)
}

func TestAddStageRejectsNilInput(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	_, err := pipeline.AddMapStage[int, int](p, "orphan", nil, func(_ context.Context, item int) (int, error) {
		return item, nil
	})
	assert.ErrorIs(t, err, pipeline.ErrInputMustBeSet)
}

func TestAddStageRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	_, err := pipeline.AddProducer(p, "generate", generator(1), pipeline.WithWorkers(0))
	assert.ErrorIs(t, err, pipeline.ErrConfigInvalid)
}

func TestCannotAddStageAfterStart(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	gen, err := pipeline.AddProducer(p, "generate", generator(1))
	require.NoError(t, err)

	_, err = pipeline.Results(context.Background(), p, gen)
	require.NoError(t, err)

	_, err = pipeline.AddMapStage(p, "late", gen, func(_ context.Context, item int) (int, error) {
		return item, nil
	})
	assert.ErrorIs(t, err, pipeline.ErrAlreadyStarted)
}
