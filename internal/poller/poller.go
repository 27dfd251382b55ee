// Package poller runs cart reconciliation on a fixed cadence for as long as
// its context lives.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval matches how often the storefront re-checks the cart.
const DefaultInterval = 5 * time.Minute

// Reconciler is the work done on every tick. *cart.Store implements it.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Params configure the poller.
type Params struct {
	Logger     *slog.Logger
	Reconciler Reconciler
	Interval   time.Duration
	// Timeout bounds a single pass; zero means the pass may run for a full interval.
	Timeout time.Duration
}

// Poller executes a reconciliation pass immediately and then on every tick.
type Poller struct {
	logger     *slog.Logger
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
}

// New builds a poller.
func New(params Params) (*Poller, error) {
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := params.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Poller{
		logger:     logger,
		reconciler: params.Reconciler,
		interval:   interval,
		timeout:    timeout,
	}, nil
}

// Run loops until ctx is cancelled and returns ctx.Err(). No pass is
// started after Run returns and the ticker is stopped on the way out.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("cart poller started", "interval", p.interval.String())
	p.runPass(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cart poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.runPass(ctx)
		}
	}
}

func (p *Poller) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	passCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.reconciler.Reconcile(passCtx)
	duration := time.Since(start)

	switch {
	case err == nil:
		p.logger.Debug("cart reconciled", "duration_ms", duration.Milliseconds())
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// shutting down
	default:
		p.logger.Warn("cart reconciliation failed", "error", err, "duration_ms", duration.Milliseconds())
	}
}
