package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brindlewood/flowline/pkg/pipeline"
)

func TestMaximumStepTimeRequiresMeasure(t *testing.T) {
	t.Parallel()

	p := pipeline.New()

	_, err := p.MaximumStepTime()
	assert.Error(t, err)
}

func TestMaximumStepTimeReportsSlackPerStage(t *testing.T) {
	t.Parallel()

	p := pipeline.New(pipeline.WithMeasure())

	gen, err := pipeline.AddProducer(p, "generate", generator(20))
	require.NoError(t, err)

	slow, err := pipeline.AddMapStage(p, "slow", gen, func(_ context.Context, item int) (int, error) {
		time.Sleep(time.Millisecond)
		return item, nil
	}, pipeline.WithWorkers(3))
	require.NoError(t, err)

	fast, err := pipeline.AddMapStage(p, "fast", slow, func(_ context.Context, item int) (int, error) {
		return item, nil
	})
	require.NoError(t, err)

	seq, err := pipeline.Results(context.Background(), p, fast)
	require.NoError(t, err)

	_, err = drain(t, seq)
	require.NoError(t, err)

	slacks, err := p.MaximumStepTime()
	require.NoError(t, err)
	require.Len(t, slacks, 3)

	names := map[string]bool{}
	for _, s := range slacks {
		names[s.StageName] = true
	}

	assert.True(t, names["slow"])
	assert.True(t, names["fast"])

	for _, s := range slacks {
		switch s.StageName {
		case "slow":
			assert.Equal(t, "generate", s.UpstreamStage)
			assert.Equal(t, "fast", s.DownstreamStage)
			assert.Equal(t, 3, s.Workers)
		case "fast":
			assert.Equal(t, "slow", s.UpstreamStage)
			assert.Empty(t, s.DownstreamStage, "fast is the last stage, its only downstream neighbor is the terminal vertex")
		}
	}
}
