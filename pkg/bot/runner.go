package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
)

var (
	ErrTickInProgress = errors.New("scan tick already in progress")
	ErrRunnerStarted  = errors.New("runner already started")
)

// OpportunitySource supplies detected opportunities each scan.
type OpportunitySource interface {
	Opportunities(ctx context.Context) ([]Opportunity, error)
}

// OpportunityFunc adapts a function to OpportunitySource.
type OpportunityFunc func(ctx context.Context) ([]Opportunity, error)

func (f OpportunityFunc) Opportunities(ctx context.Context) ([]Opportunity, error) { return f(ctx) }

// Runner drives the engine on the configured scan interval. At most one tick runs at a time.
type Runner struct {
	engine *Engine
	source OpportunitySource
	busy   atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(engine *Engine, source OpportunitySource) *Runner {
	return &Runner{engine: engine, source: source}
}

// Tick runs one scan: act on the best opportunity, then close resolved positions.
func (r *Runner) Tick(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrTickInProgress
	}
	defer r.busy.Store(false)
	defer r.engine.markScan(r.engine.now().UTC())

	var execErr error
	opps, err := r.source.Opportunities(ctx)
	if err != nil {
		logger.Warn("opportunity source: %v", err)
		execErr = err
	} else if best, ok := Best(opps); ok {
		execErr = r.engine.ExecuteBest(ctx, best, r.engine.Config().MaxPosition())
		if execErr != nil {
			logger.Error("execute %s: %v", best.MarketID, execErr)
		}
	}

	if closed := r.engine.CloseResolved(ctx); closed > 0 {
		logger.Info("scan closed %d resolved position(s)", closed)
	}
	return execErr
}

// Start runs Tick immediately and then every ScanInterval until Stop or ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRunnerStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
	logger.Info("runner started, scanning every %s", r.engine.Config().ScanInterval)
	return nil
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := r.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
			logger.Debug("tick finished with error: %v", err)
		}
		timer := time.NewTimer(r.engine.Config().ScanInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels the loop and waits for the current tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("runner stopped")
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
