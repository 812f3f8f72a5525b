package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"imagededup/logging"
)

// WithCancel returns a context that is canceled on SIGINT or SIGTERM. The
// pipeline checks it between files, so an aborted run stops at a file
// boundary with the checkpoint intact instead of mid-write.
func WithCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logging.LogWarning("received %v, stopping after current file", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// GetOptimalProcs returns the worker count used when none is configured.
// Decode-heavy work leaves a quarter of the CPUs for the rest of the system.
func GetOptimalProcs() int {
	maxProcs := (runtime.NumCPU() * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}
	return maxProcs
}
