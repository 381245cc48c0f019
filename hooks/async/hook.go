// Package asynchook moves Hooks calls off the store's hot path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{PersistSkipEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := pagestate.New(ctx, pagestate.Options{
//	    Namespace: "mobile",
//	    Provider:  provider,
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/pagestate"
)

type Hooks struct {
	inner pagestate.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	// mu guards closed and the close of q against concurrent sends.
	mu     sync.RWMutex
	closed bool
}

var _ pagestate.Hooks = (*Hooks)(nil)

func New(inner pagestate.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) RecordDropped(k, r string)         { h.try(func() { h.inner.RecordDropped(k, r) }) }
func (h *Hooks) PersistFailed(k string, err error) { h.try(func() { h.inner.PersistFailed(k, err) }) }
func (h *Hooks) ProviderSetRejected(k string)      { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) PersistSkipped(k string)           { h.try(func() { h.inner.PersistSkipped(k) }) }
func (h *Hooks) SnapshotLoadFailed(k, r string, err error) {
	h.try(func() { h.inner.SnapshotLoadFailed(k, r, err) })
}
func (h *Hooks) StaleWriteSkipped(k string, obs, cur uint64) {
	h.try(func() { h.inner.StaleWriteSkipped(k, obs, cur) })
}
