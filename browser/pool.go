package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cfr-tools/cfrstatus/config"
	"github.com/cfr-tools/cfrstatus/models"
)

// State tracks the lifecycle of a pooled instance.
type State int32

const (
	StateIdle State = iota
	StateInUse
	StateDestroyed
)

// PooledBrowser is one pool slot. The pool owns it exclusively; a borrower
// holds only a reference between Acquire and the matching Release/Destroy.
type PooledBrowser struct {
	id   int64
	inst Instance

	mu        sync.Mutex
	state     State
	createdAt time.Time
	useCount  int
}

// ID returns the slot's pool-unique identifier.
func (pb *PooledBrowser) ID() int64 { return pb.id }

// Instance returns the underlying browser session.
func (pb *PooledBrowser) Instance() Instance { return pb.inst }

// Factory launches one browser instance. Injected so tests can run the
// pool without a live Chrome.
type Factory func() (Instance, error)

// Pool manages a bounded collection of browser instances: eager warm-up to
// the configured minimum, lazy growth to the maximum, bounded checkout
// waits, and destroy-with-replacement for instances gone bad.
// It is safe for concurrent use.
type Pool struct {
	cfg     config.BrowserConfig
	factory Factory

	idle   chan *PooledBrowser
	freed  chan struct{}
	mu     sync.Mutex
	all    map[int64]*PooledBrowser
	nextID atomic.Int64
	active atomic.Int32
	closed atomic.Bool
}

// NewPool creates the pool and eagerly launches the configured minimum of
// warm instances. Individual warm-up failures degrade capacity but are not
// fatal; they are logged and the pool starts smaller.
func NewPool(cfg config.BrowserConfig, factory Factory) *Pool {
	if cfg.MinInstances < 1 {
		cfg.MinInstances = 1
	}
	if cfg.MaxInstances < cfg.MinInstances {
		cfg.MaxInstances = cfg.MinInstances
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		idle:    make(chan *PooledBrowser, cfg.MaxInstances),
		freed:   make(chan struct{}, cfg.MaxInstances),
		all:     make(map[int64]*PooledBrowser),
	}

	for i := 0; i < cfg.MinInstances; i++ {
		pb, err := p.create()
		if err != nil {
			slog.Warn("pool: failed to pre-warm instance", "error", err)
			continue
		}
		p.idle <- pb
	}
	slog.Info("browser pool ready",
		"warm", len(p.idle),
		"min", cfg.MinInstances,
		"max", cfg.MaxInstances,
	)
	return p
}

// Acquire checks out an instance: idle reuse first, then lazy creation
// while under the maximum, then a bounded wait. It fails with
// BROWSER_CREATE_FAILED when a needed launch errors and with
// POOL_EXHAUSTED when no instance frees up within the acquire timeout.
// Only the calling goroutine is suspended while waiting.
func (p *Pool) Acquire(ctx context.Context) (*PooledBrowser, error) {
	if p.closed.Load() {
		return nil, models.NewLookupError(models.ErrCodePoolExhausted, "pool is shut down", nil)
	}

	select {
	case pb := <-p.idle:
		p.checkout(pb)
		return pb, nil
	default:
	}

	p.mu.Lock()
	if len(p.all) < p.cfg.MaxInstances {
		pb, err := p.createLocked()
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		p.checkout(pb)
		return pb, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	for {
		select {
		case pb := <-p.idle:
			p.checkout(pb)
			return pb, nil
		case <-p.freed:
			// A destroy freed capacity without an idle instance
			// appearing; mint a fresh one if we win the race.
			p.mu.Lock()
			if len(p.all) < p.cfg.MaxInstances {
				pb, err := p.createLocked()
				p.mu.Unlock()
				if err != nil {
					return nil, err
				}
				p.checkout(pb)
				return pb, nil
			}
			p.mu.Unlock()
		case <-timer.C:
			return nil, models.NewLookupError(
				models.ErrCodePoolExhausted,
				"no browser instance became available within "+p.cfg.AcquireTimeout.String(),
				nil,
			)
		case <-ctx.Done():
			return nil, models.NewLookupError(
				models.ErrCodePoolExhausted,
				"wait for browser instance canceled",
				ctx.Err(),
			)
		}
	}
}

// Release returns a borrowed instance to the idle set. Exactly one Release
// or Destroy must follow every successful Acquire; a second call on the
// same checkout is ignored with a warning.
func (p *Pool) Release(pb *PooledBrowser) {
	pb.mu.Lock()
	if pb.state != StateInUse {
		state := pb.state
		pb.mu.Unlock()
		slog.Warn("pool: release of instance not in use ignored", "id", pb.id, "state", state)
		return
	}
	pb.state = StateIdle
	pb.mu.Unlock()
	p.active.Add(-1)

	if p.closed.Load() {
		p.remove(pb)
		return
	}
	p.idle <- pb
}

// Destroy is used instead of Release when the borrowed instance is known to
// be in a bad state. It removes the instance from the pool, kills it, and
// launches a replacement when the pool would otherwise drop below the
// configured minimum.
func (p *Pool) Destroy(pb *PooledBrowser) {
	pb.mu.Lock()
	if pb.state == StateDestroyed {
		pb.mu.Unlock()
		return
	}
	wasInUse := pb.state == StateInUse
	pb.state = StateDestroyed
	pb.mu.Unlock()

	if wasInUse {
		p.active.Add(-1)
	}
	p.remove(pb)
	slog.Info("pool: destroyed instance", "id", pb.id, "useCount", pb.useCount)

	if p.closed.Load() {
		return
	}
	p.mu.Lock()
	if len(p.all) < p.cfg.MinInstances {
		replacement, err := p.createLocked()
		p.mu.Unlock()
		if err == nil {
			p.idle <- replacement
			return
		}
		slog.Warn("pool: failed to replace destroyed instance", "error", err)
	} else {
		p.mu.Unlock()
	}

	// No replacement was enqueued, but capacity did free up: wake one
	// blocked Acquire so it can mint its own instance.
	select {
	case p.freed <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	total := len(p.all)
	p.mu.Unlock()
	return models.PoolStats{
		MaxInstances:    p.cfg.MaxInstances,
		TotalInstances:  total,
		ActiveInstances: int(p.active.Load()),
	}
}

// Close drains the pool and kills every instance. Call on graceful
// shutdown to prevent zombie Chrome processes.
func (p *Pool) Close() {
	p.closed.Store(true)

drain:
	for {
		select {
		case pb := <-p.idle:
			p.remove(pb)
		default:
			break drain
		}
	}

	p.mu.Lock()
	remaining := make([]*PooledBrowser, 0, len(p.all))
	for _, pb := range p.all {
		remaining = append(remaining, pb)
	}
	p.mu.Unlock()
	for _, pb := range remaining {
		p.remove(pb)
	}
	slog.Info("browser pool shut down")
}

// checkout marks a slot as borrowed.
func (p *Pool) checkout(pb *PooledBrowser) {
	pb.mu.Lock()
	pb.state = StateInUse
	pb.useCount++
	pb.mu.Unlock()
	p.active.Add(1)
}

// create launches a new instance and registers it (acquires the pool lock).
func (p *Pool) create() (*PooledBrowser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createLocked()
}

// createLocked launches a new instance. Caller must hold p.mu.
func (p *Pool) createLocked() (*PooledBrowser, error) {
	inst, err := p.factory()
	if err != nil {
		if _, ok := err.(*models.LookupError); ok {
			return nil, err
		}
		return nil, models.NewLookupError(models.ErrCodeCreateFailed, "failed to create browser instance", err)
	}
	pb := &PooledBrowser{
		id:        p.nextID.Add(1),
		inst:      inst,
		state:     StateIdle,
		createdAt: time.Now(),
	}
	p.all[pb.id] = pb
	return pb, nil
}

// remove untracks a slot and closes its instance.
func (p *Pool) remove(pb *PooledBrowser) {
	p.mu.Lock()
	delete(p.all, pb.id)
	p.mu.Unlock()
	if err := pb.inst.Close(); err != nil {
		slog.Warn("pool: error closing instance", "id", pb.id, "error", err)
	}
}
