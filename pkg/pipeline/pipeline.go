package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/brindlewood/flowline/internal/graphstore"
	"github.com/brindlewood/flowline/pkg/pipeline/drawer"
	"github.com/brindlewood/flowline/pkg/pipeline/measure"
)

const (
	startVertex = "start"
	endVertex   = "end"
)

type closer interface {
	Close()
}

// Pipeline is a linear, non-empty sequence of stages plus an initial
// producer. Stages are added with AddProducer/AddStage/AddMapStage, which
// is inert: nothing runs until Run (or, more commonly, Results/Execute) is
// called. Once started, no further stages can be added.
type Pipeline struct {
	mu        sync.Mutex
	started   bool
	startOnce sync.Once
	starters  []func(ctx context.Context)
	channels  []closer
	lastName  string

	measure *measure.DefaultMeasure
	drawer  drawer.Drawer
	graph   graph.Graph[string, string]
	store   graphstore.CustomStore[string, string]

	startTime time.Time
	cancel    context.CancelFunc
}

// PipelineOption configures instrumentation for a Pipeline, composed the
// same way stage Options are.
type PipelineOption func(*Pipeline)

// WithMeasure turns on per-stage timing: average processing time per item
// and average inter-stage transport time, queryable via Pipeline.Measure.
func WithMeasure() PipelineOption {
	return func(p *Pipeline) { p.measure = measure.NewDefaultMeasure() }
}

// WithDrawer writes the stage chain to svgPath as Graphviz DOT source once
// the pipeline finishes; the file is not rendered SVG. Combine with
// WithMeasure to colour edges by transport latency.
func WithDrawer(svgPath string) PipelineOption {
	return func(p *Pipeline) { p.drawer = drawer.NewSVGDrawer(svgPath) }
}

// New creates an empty pipeline ready to have stages added to it.
func New(opts ...PipelineOption) *Pipeline {
	store := graphstore.NewMemoryStore[string, string]()
	p := &Pipeline{
		lastName: startVertex,
		graph:    graph.NewWithStore(graph.StringHash, store, graph.Directed()),
		store:    store,
	}

	for _, opt := range opts {
		opt(p)
	}

	_ = p.graph.AddVertex(startVertex)
	_ = p.graph.AddVertex(endVertex)

	if p.drawer != nil {
		_ = p.drawer.AddStep(startVertex, 1)
		_ = p.drawer.AddStep(endVertex, 1)
	}

	return p
}

// prepareStage records a new stage's position in the (always linear) stage
// graph and wires it into the drawer/measure instrumentation, if
// configured. It must be called before the stage's workers are spawned.
func (p *Pipeline) prepareStage(name string, workers int) error {
	p.mu.Lock()
	parent := p.lastName
	p.lastName = name
	p.mu.Unlock()

	_ = p.graph.AddVertex(name)
	_ = p.graph.AddEdge(parent, name)

	if p.drawer != nil {
		if err := p.drawer.AddStep(name, workers); err != nil {
			return errors.Wrapf(err, "unable to add stage %q to drawer", name)
		}

		if err := p.drawer.AddLink(parent, name); err != nil {
			return errors.Wrapf(err, "unable to link stage %q from %q", name, parent)
		}
	}

	if p.measure != nil {
		p.measure.AddMetric(name, workers)
	}

	return nil
}

// finalVertex links the pipeline's last stage to the terminal "end" vertex,
// completing the drawable graph. Called once Results/Execute starts
// draining the last stage.
func (p *Pipeline) finalVertex(name string) {
	_ = p.graph.AddEdge(name, endVertex)

	if p.drawer != nil {
		_ = p.drawer.AddLink(name, endVertex)
	}
}

// neighborNames reports the stage immediately before and after name in the
// (always linear) stage chain, using the graph store's adjacency index
// directly rather than walking the whole graph. Either side is "" at the
// chain's start/end vertices, which carry no stage instrumentation of their
// own.
func (p *Pipeline) neighborNames(name string) (predecessor, successor string) {
	if preds, err := p.store.Predecessors(name); err == nil {
		for _, k := range preds {
			if k != startVertex {
				predecessor = k
			}
		}
	}

	if succs, err := p.store.Successors(name); err == nil {
		for _, k := range succs {
			if k != endVertex {
				successor = k
			}
		}
	}

	return predecessor, successor
}

func (p *Pipeline) registerStage(starter func(ctx context.Context), out closer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.Wrap(ErrAlreadyStarted, "cannot add a stage")
	}

	p.starters = append(p.starters, starter)
	p.channels = append(p.channels, out)

	return nil
}

// Run starts every registered stage's workers simultaneously. It is safe to
// call multiple times or concurrently; only the first call has effect. Most
// callers never call Run directly — Results and Execute call it lazily.
func (p *Pipeline) Run(ctx context.Context) {
	p.startOnce.Do(func() {
		p.mu.Lock()
		p.started = true
		p.startTime = time.Now()
		starters := p.starters
		p.mu.Unlock()

		runCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel

		for _, start := range starters {
			go start(runCtx)
		}
	})
}

// Cancel closes every stage's output channel, unblocking any worker
// currently suspended on Put or Get so it can observe closure and
// terminate. This is the escape hatch for early abandonment: a worker that
// terminates this way does not complete the normal marker handshake, so the
// marker-count invariant is only guaranteed up to the point Cancel is
// called.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	for _, ch := range p.channels {
		ch.Close()
	}
}

// Measure returns the per-stage timing instrumentation, or nil if the
// pipeline was built without WithMeasure.
func (p *Pipeline) Measure() measure.Measure {
	if p.measure == nil {
		return nil
	}

	return p.measure
}

// finish renders the drawer, if configured, after the terminal consumer has
// fully drained the pipeline.
func (p *Pipeline) finish() error {
	if p.drawer == nil {
		return nil
	}

	if p.measure != nil {
		if err := p.drawer.SetTotalTime(endVertex, p.startTime); err != nil {
			return errors.Wrap(err, "unable to set total pipeline time")
		}

		if err := p.drawer.AddMeasure(p.measure); err != nil {
			return errors.Wrap(err, "unable to attach measurements to drawer")
		}
	}

	if err := p.drawer.Draw(); err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}
