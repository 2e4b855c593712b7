// Package optimistic applies local mutations immediately and confirms them
// with the server in the background, reverting on failure.
package optimistic

import (
	"context"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/pkg/telemetry"
)

// Mutation is a reversible local change. Apply runs synchronously before
// the remote call; Revert runs only when the remote call fails.
type Mutation struct {
	Name   string
	Apply  func()
	Revert func()
}

// Remote confirms a mutation with the server
type Remote func(ctx context.Context) error

// ErrorHandler is told about every failed confirmation after Revert ran
type ErrorHandler func(name string, err error)

// Runner dispatches confirmations and tracks them until Wait
type Runner struct {
	wg        conc.WaitGroup
	logger    *zap.Logger
	onError   ErrorHandler
	confirmed metric.Int64Counter
	reverted  metric.Int64Counter
}

// NewRunner creates a runner. onError may be nil.
func NewRunner(logger *zap.Logger, onError ErrorHandler) *Runner {
	return &Runner{
		logger:    logger,
		onError:   onError,
		confirmed: telemetry.Counter("feedclient.mutations.confirmed", "Optimistic mutations confirmed by the server"),
		reverted:  telemetry.Counter("feedclient.mutations.reverted", "Optimistic mutations rolled back after a failed confirmation"),
	}
}

// Run applies m, then confirms it in the background. The returned channel
// yields the confirmation result once and is then closed. The confirmation
// outlives cancellation of ctx.
func (r *Runner) Run(ctx context.Context, m Mutation, remote Remote) <-chan error {
	if m.Apply != nil {
		m.Apply()
	}

	done := make(chan error, 1)
	remoteCtx := context.WithoutCancel(ctx)
	r.wg.Go(func() {
		defer close(done)

		attrs := metric.WithAttributes(attribute.String("mutation", m.Name))
		err := remote(remoteCtx)
		if err != nil {
			if m.Revert != nil {
				m.Revert()
			}
			r.reverted.Add(remoteCtx, 1, attrs)
			r.logger.Warn("Mutation reverted", zap.String("mutation", m.Name), zap.Error(err))
			if r.onError != nil {
				r.onError(m.Name, err)
			}
			done <- err
			return
		}
		r.confirmed.Add(remoteCtx, 1, attrs)
		done <- nil
	})
	return done
}

// Wait blocks until every dispatched confirmation has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Resolved returns a channel already holding err, for intents that finish
// without a remote call.
func Resolved(err error) <-chan error {
	done := make(chan error, 1)
	done <- err
	close(done)
	return done
}
