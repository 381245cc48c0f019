package pagestate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/unkn0wn-root/pagestate/codec"
	"github.com/unkn0wn-root/pagestate/internal/util"
	"github.com/unkn0wn-root/pagestate/internal/wire"
	pr "github.com/unkn0wn-root/pagestate/provider"
)

// SetCostFunc computes the provider cost hint for a snapshot write.
type SetCostFunc func(storageKey string, raw []byte) int64

// Options tune the behavior of the store.
// Only Namespace and Provider are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace, e.g. "mobile", "dashboard:user-42"
	Provider  pr.Provider

	Logger           Logger          // if nil, NopLogger is used
	Hooks            Hooks           // if nil, NopHooks is used
	Clock            clockwork.Clock // nil => real clock
	StaleAfter       time.Duration   // IsStale default threshold; 0 => 5m
	NoticeTTL        time.Duration   // resume notice auto-dismiss; 0 => 4s, < 0 => never
	SnapshotTTL      time.Duration   // provider TTL for the snapshot; 0 => no expiry
	WriteTimeout     time.Duration   // per background write; 0 => 5s
	Synchronous      bool            // persist on the mutating goroutine instead of the flusher
	MaxSnapshotBytes int             // refuse larger snapshots at load; 0 => unlimited
	ComputeSetCost   SetCostFunc     // default len(raw)
}

type entry struct {
	raw         []byte // encoded fields; replaced on every write, never mutated
	lastFetched int64  // unix millis; 0 => never written / reset
	version     uint64
}

type pageMeta struct {
	title    string
	defaults []byte
}

// Store holds the record of every page of one namespace.
// It is safe for concurrent use.
type Store struct {
	ns             string
	storageKey     string
	provider       pr.Provider
	log            Logger
	hooks          Hooks
	clock          clockwork.Clock
	staleAfter     time.Duration
	noticeTTL      time.Duration
	snapshotTTL    time.Duration
	writeTimeout   time.Duration
	synchronous    bool
	computeSetCost SetCostFunc
	snap           codec.Codec[[]wire.Record]

	mu      sync.Mutex
	pages   map[string]*pageMeta
	records map[string]*entry
	dirty   bool
	closed  bool

	// persistMu serializes provider writes; lastSum, hasSum and
	// providerClosed are guarded by it.
	persistMu      sync.Mutex
	lastSum        uint64
	hasSum         bool
	providerClosed bool

	kick      chan struct{}
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

// New builds a store and loads the namespace snapshot from the provider.
// A missing, unreadable or corrupt snapshot is not an error: the store starts
// from page defaults.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("pagestate: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("pagestate: namespace is required")
	}

	s := &Store{
		ns:          opts.Namespace,
		storageKey:  util.StorageKey(opts.Namespace),
		provider:    opts.Provider,
		snapshotTTL: opts.SnapshotTTL,
		synchronous: opts.Synchronous,
		pages:       make(map[string]*pageMeta),
		records:     make(map[string]*entry),
		snap: codec.Limit[[]wire.Record]{
			Inner:     snapshotCodec{},
			MaxDecode: opts.MaxSnapshotBytes,
		},
	}

	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.clock = coalesce[clockwork.Clock](opts.Clock, clockwork.NewRealClock())
	s.staleAfter = coalesce[time.Duration](opts.StaleAfter, DefaultStaleAfter)
	s.noticeTTL = coalesce[time.Duration](opts.NoticeTTL, DefaultNoticeTTL)
	s.writeTimeout = coalesce[time.Duration](opts.WriteTimeout, defaultWriteTimeout)

	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	s.load(ctx)

	if !s.synchronous {
		s.kick = make(chan struct{}, 1)
		s.stopCh = make(chan struct{})
		s.closeWg.Add(1)
		go s.flushLoop()
	}
	return s, nil
}

// Namespace returns the store namespace.
func (s *Store) Namespace() string { return s.ns }

// StorageKey returns the provider key holding the snapshot.
func (s *Store) StorageKey() string { return s.storageKey }

// Keys returns the registered page keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.pages))
	for k := range s.pages {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Reset replaces the record for key with the page default and persists it.
// LastFetched goes back to the 0 sentinel. A record loaded for a page that was
// never registered is discarded. Unknown keys are a no-op.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	changed := s.resetLocked(key)
	s.mu.Unlock()
	if changed {
		s.log.Debug("page reset", Fields{"page": key})
		s.schedule()
	}
}

// ClearAll resets every known page in one operation (logout, account switch).
func (s *Store) ClearAll() {
	s.mu.Lock()
	n := 0
	for k := range s.records {
		if s.resetLocked(k) {
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.log.Debug("all pages reset", Fields{"pages": n})
		s.schedule()
	}
}

func (s *Store) resetLocked(key string) bool {
	e, ok := s.records[key]
	if !ok {
		return false
	}
	meta, registered := s.pages[key]
	if !registered {
		delete(s.records, key)
		s.dirty = true
		return true
	}
	if e.lastFetched == 0 && bytes.Equal(e.raw, meta.defaults) {
		return false // already at default
	}
	s.records[key] = &entry{raw: meta.defaults, lastFetched: 0, version: e.version + 1}
	s.dirty = true
	return true
}

// LastFetched returns the last write time of key in unix millis; 0 when the
// page has no record or was reset.
func (s *Store) LastFetched(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.records[key]; ok {
		return e.lastFetched
	}
	return 0
}

// Age returns how long ago key was written. ok is false when there is no
// record (never written, or reset).
func (s *Store) Age(key string) (age time.Duration, ok bool) {
	last := s.LastFetched(key)
	if last == 0 {
		return 0, false
	}
	return s.ageOf(last), true
}

// CacheAgeMinutes returns floor((now - lastFetched) / 1m), or 0 when the page
// has no record.
func (s *Store) CacheAgeMinutes(key string) int {
	age, ok := s.Age(key)
	if !ok {
		return 0
	}
	return int(age / time.Minute)
}

// IsStale reports whether key's age reached threshold. A threshold <= 0 means
// "use Options.StaleAfter" (5m by default); it never means "always stale", so
// IsStale(key, 0) right after a write is false. A page without a record is
// never stale. Staleness is advisory: nothing is evicted.
func (s *Store) IsStale(key string, threshold time.Duration) bool {
	return s.isStaleAt(s.LastFetched(key), threshold)
}

func (s *Store) isStaleAt(last int64, threshold time.Duration) bool {
	if last == 0 {
		return false
	}
	if threshold <= 0 {
		threshold = s.staleAfter
	}
	return s.ageOf(last) >= threshold
}

func (s *Store) ageOf(last int64) time.Duration {
	age := s.clock.Now().Sub(time.UnixMilli(last))
	if age < 0 {
		return 0
	}
	return age
}

// EntryInfo describes one stored record, for tooling.
type EntryInfo struct {
	PageKey     string
	Title       string
	LastFetched int64
	Version     uint64
	Size        int
	Registered  bool
	Payload     []byte // copy of the encoded fields
}

// Entries lists every record currently held, sorted by page key.
func (s *Store) Entries() []EntryInfo {
	s.mu.Lock()
	out := make([]EntryInfo, 0, len(s.records))
	for k, e := range s.records {
		info := EntryInfo{
			PageKey:     k,
			LastFetched: e.lastFetched,
			Version:     e.version,
			Size:        len(e.raw),
			Payload:     append([]byte(nil), e.raw...),
		}
		if meta, ok := s.pages[k]; ok {
			info.Registered = true
			info.Title = meta.title
		}
		out = append(out, info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PageKey < out[j].PageKey })
	return out
}

// Flush writes everything mutated so far and returns the write error, if any.
// Production code does not need to call it; mutations flush in the background.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.persist(ctx)
}

// Close stops the background flusher, writes pending state and closes the
// provider. The store keeps serving reads and in-memory writes afterwards.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.closeWg.Wait()
		}
		perr := s.persist(ctx)

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// a persist already running finishes first; later ones see providerClosed
		s.persistMu.Lock()
		s.providerClosed = true
		cerr := s.provider.Close(ctx)
		s.persistMu.Unlock()

		err = errors.Join(perr, cerr)
	})
	return err
}

func validKey(key string) bool {
	return len(key) > 0 && len(key) <= 0xFFFF
}
