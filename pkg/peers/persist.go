package peers

import (
	"sync"
	"time"
)

// PersistDebounceMs is how long a change waits before being flushed to
// the Store, to limit flash wear on the original firmware's target
// hardware.
const PersistDebounceMs = 2000

// Persister coalesces repeated MarkDirty calls into a single Save after
// the debounce window elapses, so a burst of pairing activity writes the
// peer store once instead of once per change.
type Persister struct {
	registry *Registry
	store    Store
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	onError func(error)
}

// NewPersister returns a Persister that debounces writes of registry's
// paired rows to store.
func NewPersister(registry *Registry, store Store, onError func(error)) *Persister {
	if onError == nil {
		onError = func(error) {}
	}
	return &Persister{
		registry: registry,
		store:    store,
		debounce: PersistDebounceMs * time.Millisecond,
		onError:  onError,
	}
}

// MarkDirty schedules a save PersistDebounceMs from now, resetting any
// already-pending timer so a burst of changes produces one write.
func (p *Persister) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.flush)
}

func (p *Persister) flush() {
	if err := p.store.Save(p.registry.PairedRows()); err != nil {
		p.onError(err)
	}
}

// FlushNow cancels any pending debounce timer and saves immediately, for
// use on clean shutdown.
func (p *Persister) FlushNow() error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	return p.store.Save(p.registry.PairedRows())
}
