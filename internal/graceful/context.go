// Package graceful wires OS interrupt signals into a cancellable context for
// the pipeline demo's shutdown path.
package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// Context returns a context cancelled on SIGINT/SIGTERM, and the cancel
// func so the caller can also stop things deliberately (e.g. once the
// pipeline's results are fully drained).
func Context(ctx context.Context, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}

		log.Info().Stringer("signal", sig).Msg("received termination signal, cancelling pipeline")
		cancel()
	}()

	return ctx, cancel
}
