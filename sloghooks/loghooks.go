package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/pagestate"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	PersistSkipEvery uint64
	StaleWriteEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	skipCtr  atomic.Uint64
	staleCtr atomic.Uint64
}

var _ pagestate.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// redact hides storage keys, which may embed user ids. Page keys are static
// and logged as is.
func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SnapshotLoadFailed(storageKey, reason string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("pagestate.snapshot_load_failed",
		"key", h.redact(storageKey),
		"reason", reason,
		"err", err)
}

func (h *Hooks) RecordDropped(pageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("pagestate.record_dropped",
		"page", pageKey,
		"reason", reason)
}

func (h *Hooks) PersistFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("pagestate.persist_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("pagestate.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) PersistSkipped(storageKey string) {
	if h.l == nil || !sample(h.opts.PersistSkipEvery, &h.skipCtr) {
		return
	}
	h.l.Debug("pagestate.persist_skipped",
		"key", h.redact(storageKey))
}

func (h *Hooks) StaleWriteSkipped(pageKey string, observed, current uint64) {
	if h.l == nil || !sample(h.opts.StaleWriteEvery, &h.staleCtr) {
		return
	}
	h.l.Info("pagestate.stale_write_skipped",
		"page", pageKey,
		"observed", observed,
		"current", current)
}
