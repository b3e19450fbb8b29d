package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"taskdeck/internal/lifecycle"
	"taskdeck/internal/store"
)

// Pool runs one scheduler per owner, started on first use.
type Pool struct {
	store store.Store
	lc    *lifecycle.Engine
	cfg   Config
	opts  []Option
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu      sync.Mutex
	running map[string]*Scheduler
	closed  bool
}

// NewPool creates a pool whose schedulers stop when ctx is done or Close is called.
func NewPool(ctx context.Context, s store.Store, lc *lifecycle.Engine, cfg Config, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		store:   s,
		lc:      lc,
		cfg:     cfg,
		opts:    opts,
		log:     slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]*Scheduler),
	}
	return p
}

// Get returns the scheduler for ownerID, starting it if needed. It returns
// nil once the pool is closed. A scheduler that fails to start closes its
// Done channel with a non-nil Err and is dropped, so the next Get retries.
func (p *Pool) Get(ownerID string) *Scheduler {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if s, ok := p.running[ownerID]; ok {
		return s
	}

	s := New(p.store, p.lc, p.cfg, p.opts...)
	p.running[ownerID] = s
	p.group.Go(func() error {
		err := s.Run(p.ctx, ownerID)
		if err != nil {
			p.log.Error("scheduler failed", "owner", ownerID, "error", err)
			p.mu.Lock()
			if p.running[ownerID] == s {
				delete(p.running, ownerID)
			}
			p.mu.Unlock()
		}
		return err
	})
	p.log.Info("scheduler started", "owner", ownerID)
	return s
}

// Owners returns the owners with a running scheduler, sorted.
func (p *Pool) Owners() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.running))
	for id := range p.running {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close stops every scheduler and waits for them to return. The first
// scheduler error, if any, is returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	return p.group.Wait()
}
