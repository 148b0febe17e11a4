// Command flowline-demo exercises the pipeline engine end-to-end: a
// producer stage emitting a configurable range of integers, a map stage
// adding a constant to each, instrumentation (measure + SVG drawer), and
// graceful cancellation on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/brindlewood/flowline/internal/graceful"
	"github.com/brindlewood/flowline/pkg/pipeline"
)

//nolint:gochecknoglobals // kingpin's idiomatic flag-declaration style
var (
	app = kingpin.New("flowline-demo", "Runs a sample flowline pipeline.")

	n         = app.Flag("n", "how many integers the producer emits").Default("20").Int()
	addN      = app.Flag("add", "constant added by the map stage").Default("10").Int()
	workers   = app.Flag("workers", "worker count for the map stage").Default("4").Int()
	qsize     = app.Flag("qsize", "output queue capacity for the map stage").Default("0").Int()
	failAt    = app.Flag("fail-at", "fail the map stage when it sees this value (-1 disables)").Default("-1").Int()
	svgPath   = app.Flag("svg", "path to write the pipeline graph to as Graphviz DOT source (empty disables)").Default("").String()
	withStats = app.Flag("measure", "collect per-stage timing").Default("true").Bool()
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, continuing with the process environment")
	}

	kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, cancel := graceful.Context(context.Background(), log)
	defer cancel()

	if err := run(ctx, log); err != nil {
		var taskErr *pipeline.TaskException

		if errors.As(err, &taskErr) {
			log.Error().Str("worker", taskErr.WorkerID).Str("kind", taskErr.Kind).Msg(taskErr.Message)
		} else {
			log.Error().Err(err).Msg("pipeline failed")
		}

		os.Exit(1)
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	opts := []pipeline.PipelineOption{}
	if *withStats {
		opts = append(opts, pipeline.WithMeasure())
	}

	if *svgPath != "" {
		opts = append(opts, pipeline.WithDrawer(*svgPath))
	}

	pipe := pipeline.New(opts...)

	go func() {
		<-ctx.Done()
		pipe.Cancel()
	}()

	gen, err := pipeline.AddProducer(pipe, "generator", generate(*n))
	if err != nil {
		return err
	}

	addConst := *addN
	failValue := *failAt

	sums, err := pipeline.AddMapStage(pipe, "add-n", gen, func(_ context.Context, item int) (int, error) {
		if failValue >= 0 && item == failValue {
			return 0, errors.New("refused to process the configured fail-at value")
		}

		return item + addConst, nil
	}, pipeline.WithWorkers(*workers), pipeline.WithQueueSize(*qsize))
	if err != nil {
		return err
	}

	seq, err := pipeline.Results(ctx, pipe, sums)
	if err != nil {
		return err
	}

	var total, count int

	for {
		item, ok, err := seq.Next()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		total += item
		count++
	}

	log.Info().Int("items", count).Int("sum", total).Msg("pipeline finished")

	if *withStats {
		if slacks, err := pipe.MaximumStepTime(); err == nil {
			for _, s := range slacks {
				log.Debug().Str("stage", s.StageName).Dur("step_slack", s.StepSlack).Msg("critical path slack")
			}
		}
	}

	return nil
}

func generate(n int) pipeline.ProducerFunc[int] {
	return func(_ context.Context) (pipeline.Sequence[int], error) {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}

		return pipeline.SliceSequence(items), nil
	}
}
