package pagestate

import (
	"context"
	"errors"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/pagestate/codec"
	"github.com/unkn0wn-root/pagestate/internal/wire"
	pr "github.com/unkn0wn-root/pagestate/provider"
)

type snapshotCodec struct{}

func (snapshotCodec) Encode(rs []wire.Record) ([]byte, error) { return wire.EncodeSnapshot(rs) }
func (snapshotCodec) Decode(b []byte) ([]wire.Record, error)  { return wire.DecodeSnapshot(b) }

func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.provider.Get(ctx, s.storageKey)
	if errors.Is(err, pr.ErrCorrupt) {
		s.dropCorrupt(ctx, err)
		return
	}
	if err != nil {
		s.log.Warn("snapshot read failed; starting from defaults", Fields{"key": s.storageKey, "err": err})
		s.hooks.SnapshotLoadFailed(s.storageKey, "read_error", err)
		return
	}
	if !ok {
		return
	}

	records, err := s.snap.Decode(raw)
	if err != nil {
		var tooLarge *codec.ErrTooLarge
		if errors.As(err, &tooLarge) {
			s.log.Warn("snapshot too large; starting from defaults", Fields{"key": s.storageKey, "size": tooLarge.Size})
			s.hooks.SnapshotLoadFailed(s.storageKey, "too_large", err)
			return
		}
		s.dropCorrupt(ctx, err)
		return
	}

	for _, r := range records {
		last := r.LastFetched
		if last < 0 {
			last = 0
		}
		s.records[r.Key] = &entry{raw: r.Payload, lastFetched: last, version: r.Version}
	}
	s.lastSum = xxhash.Sum64(raw)
	s.hasSum = true
	s.log.Debug("snapshot loaded", Fields{"key": s.storageKey, "records": len(records)})
}

// dropCorrupt deletes an unusable snapshot so the next start does not trip on it.
func (s *Store) dropCorrupt(ctx context.Context, err error) {
	_ = s.provider.Del(ctx, s.storageKey)
	s.log.Warn("corrupt snapshot dropped", Fields{"key": s.storageKey, "err": err})
	s.hooks.SnapshotLoadFailed(s.storageKey, "corrupt", err)
}

// writeLocked stores raw as the new record for key. Caller holds s.mu.
func (s *Store) writeLocked(key string, raw []byte) *entry {
	now := s.clock.Now().UnixMilli()
	prev := s.records[key]
	e := &entry{raw: raw, lastFetched: now}
	if prev != nil {
		e.version = prev.version + 1
		if prev.lastFetched > now {
			e.lastFetched = prev.lastFetched // never move backwards
		}
	} else {
		e.version = 1
	}
	s.records[key] = e
	s.dirty = true
	return e
}

// schedule hands the current state to the flusher (or writes it inline).
// Errors are swallowed here; they surface through logs, hooks and Flush.
func (s *Store) schedule() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if s.synchronous {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		_ = s.persist(ctx)
		cancel()
		return
	}
	select {
	case s.kick <- struct{}{}:
	default: // a write is already pending; it will pick up this mutation
	}
}

func (s *Store) flushLoop() {
	defer s.closeWg.Done()
	for {
		select {
		case <-s.kick:
			ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
			_ = s.persist(ctx)
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) snapshotLocked() []wire.Record {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]wire.Record, 0, len(keys))
	for _, k := range keys {
		e := s.records[k]
		out = append(out, wire.Record{
			Key:         k,
			Version:     e.version,
			LastFetched: e.lastFetched,
			Payload:     e.raw,
		})
	}
	return out
}

// persist writes the snapshot if anything changed since the last attempt.
// On failure the store stays dirty so the next mutation or Flush retries,
// and whatever the provider held before is left untouched.
func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.providerClosed {
		return ErrClosed // state stays in memory, dirty
	}

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	records := s.snapshotLocked()
	s.dirty = false
	s.mu.Unlock()

	blob, err := s.snap.Encode(records)
	if err != nil {
		return s.persistFailed(&PersistError{StorageKey: s.storageKey, Err: err})
	}

	sum := xxhash.Sum64(blob)
	if s.hasSum && sum == s.lastSum {
		s.hooks.PersistSkipped(s.storageKey)
		return nil
	}

	ok, err := s.provider.Set(ctx, s.storageKey, blob, s.computeSetCost(s.storageKey, blob), s.snapshotTTL)
	if err != nil {
		return s.persistFailed(&PersistError{StorageKey: s.storageKey, Err: err})
	}
	if !ok {
		s.hooks.ProviderSetRejected(s.storageKey)
		return s.persistFailed(&PersistError{StorageKey: s.storageKey, Rejected: true})
	}

	s.lastSum = sum
	s.hasSum = true
	s.log.Debug("snapshot persisted", Fields{"key": s.storageKey, "records": len(records), "bytes": len(blob)})
	return nil
}

func (s *Store) persistFailed(err *PersistError) error {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	s.log.Warn("snapshot persist failed", Fields{"key": s.storageKey, "err": err})
	s.hooks.PersistFailed(s.storageKey, err)
	return err
}
