package pipeline

// stageConfig holds a stage's runtime configuration: worker count and
// output channel capacity.
type stageConfig struct {
	workers int
	qsize   int
}

func defaultStageConfig() stageConfig {
	return stageConfig{workers: 1, qsize: 0}
}

func (c stageConfig) validate() error {
	if c.workers < 1 {
		return ErrConfigInvalid
	}

	if c.qsize < 0 {
		return ErrConfigInvalid
	}

	return nil
}

// Option configures a stage's worker count and output queue size. Options
// are applied in order, so later options win over earlier ones.
type Option func(*stageConfig)

// WithWorkers sets how many parallel workers the stage spawns. Default 1.
func WithWorkers(workers int) Option {
	return func(c *stageConfig) { c.workers = workers }
}

// WithQueueSize sets the output channel's capacity. 0 (the default) means
// unbounded.
func WithQueueSize(qsize int) Option {
	return func(c *stageConfig) { c.qsize = qsize }
}

func applyOptions(opts ...Option) stageConfig {
	cfg := defaultStageConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
