// Package pipeline provides a parallel pipeline execution engine.
//
// A pipeline is a linear chain of stages. Each stage owns a user-supplied
// function, a worker count, and a bounded (or unbounded) output channel. The
// engine spawns the configured number of workers per stage, multiplexes
// items and end-of-stream/error markers across them, and propagates errors
// strictly downstream so that no worker is ever left blocked once a sibling
// has failed.
//
// Stages are built with AddProducer, AddStage, and AddMapStage, which return
// a typed handle used to chain the next stage. Nothing runs until the
// pipeline's Results or Execute is called; building the chain is inert.
//
// The engine does not support branching topologies, cross-worker ordering
// guarantees, distributed execution, dynamic worker rescaling, or
// checkpoint/resume.
package pipeline
