package quiz

import (
	"context"
	"sync"

	"github.com/mind-engage/iqscore/internal/questions"
)

// Registry maps session ids to live drivers.
type Registry struct {
	bank       *questions.Bank
	engagement questions.Engagement
	persist    Persister
	handoff    Handoff
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	drivers map[string]*Driver
}

func NewRegistry(bank *questions.Bank, engagement questions.Engagement, p Persister, h Handoff, opts Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		bank:       bank,
		engagement: engagement,
		persist:    p,
		handoff:    h,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		drivers:    map[string]*Driver{},
	}
}

// Start returns the live driver for id, creating and running one if none
// exists. prior answers seed a new driver only. The bool reports whether a
// new driver was started.
func (r *Registry) Start(id string, prior []questions.Answer) (*Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[id]; ok {
		return d, false
	}
	d := NewDriver(id, r.bank, r.engagement, prior, r.persist, r.handoff, r.opts)
	r.drivers[id] = d
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		d.Run(r.ctx)
		r.mu.Lock()
		if r.drivers[id] == d {
			delete(r.drivers, id)
		}
		r.mu.Unlock()
	}()
	return d, true
}

func (r *Registry) Get(id string) (*Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	return d, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drivers)
}

// Shutdown stops every driver and waits for them to exit or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
