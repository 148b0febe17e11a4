package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// StageSlack reports, for one stage on the pipeline's critical path, how
// much headroom it has relative to the slowest stage/edge observed, so a
// caller can decide where raising WithWorkers would actually help.
type StageSlack struct {
	StageName       string
	UpstreamStage   string
	DownstreamStage string
	Workers         int
	StepSlack       time.Duration
	TransportGap    time.Duration
}

// MaximumStepTime walks the stage chain's critical path and reports each
// stage's slack relative to the slowest stage and the slowest inter-stage
// transport observed, ordered from tightest to loosest. It requires
// WithMeasure; call it after Results/Execute has fully drained the
// pipeline so the measurements are complete.
func (p *Pipeline) MaximumStepTime() ([]StageSlack, error) {
	if p.measure == nil {
		return nil, errors.New("MaximumStepTime requires a pipeline built with WithMeasure")
	}

	path, err := graph.ShortestPath(p.graph, startVertex, endVertex)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute critical path")
	}

	var maxAvgStep, maxAvgEdge time.Duration

	for _, step := range p.measure.AllMetrics() {
		if avg := step.AVGDuration(); avg > maxAvgStep {
			maxAvgStep = avg
		}

		for _, info := range step.AllTransports() {
			if info.Elapsed > maxAvgEdge {
				maxAvgEdge = info.Elapsed
			}
		}
	}

	slacks := make([]StageSlack, 0, len(path))

	for i, name := range path {
		if name == startVertex || name == endVertex {
			continue
		}

		upstream, downstream := p.neighborNames(name)
		slack := StageSlack{StageName: name, UpstreamStage: upstream, DownstreamStage: downstream}

		if mt, ok := p.measure.AllMetrics()[name]; ok {
			slack.StepSlack = maxAvgStep - mt.AVGDuration()
			slack.Workers = mt.Concurrency()

			if i > 0 {
				for _, info := range mt.AllTransports() {
					slack.TransportGap = maxAvgEdge - info.Elapsed
				}
			}
		}

		slacks = append(slacks, slack)
	}

	sort.Slice(slacks, func(i, j int) bool {
		return math.Abs(float64(slacks[i].StepSlack-slacks[i].TransportGap)) <
			math.Abs(float64(slacks[j].StepSlack-slacks[j].TransportGap))
	})

	return slacks, nil
}
