package pagestate

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/pagestate/codec"
)

// Record is the cached state of one page.
type Record[F any] struct {
	PageKey     string
	Fields      F
	LastFetched int64 // unix millis of the last write; 0 => default / reset
	Version     uint64
}

// Visited reports whether the record holds written state rather than the default.
func (r Record[F]) Visited() bool { return r.LastFetched != 0 }

// LastFetchedTime returns LastFetched as a time; zero time when never written.
func (r Record[F]) LastFetchedTime() time.Time {
	if r.LastFetched == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.LastFetched)
}

// Patch edits a copy of the current fields. Whatever it does not assign keeps
// its last value. A patch may run more than once under write contention and
// must not call back into the store.
type Patch[F any] func(*F)

// PageOption configures Register.
type PageOption func(*pageConfig)

type pageConfig struct {
	title string
	codec any
}

// WithTitle sets the human readable page name used by the resume notice.
func WithTitle(title string) PageOption {
	return func(c *pageConfig) { c.title = title }
}

// WithCodec sets the page codec. Default is codec.JSON.
func WithCodec[F any](c codec.Codec[F]) PageOption {
	return func(pc *pageConfig) { pc.codec = c }
}

// Page is the typed handle of one page key.
type Page[F any] struct {
	s        *Store
	key      string
	title    string
	codec    codec.Codec[F]
	defaults []byte
}

// Register declares a page with its default fields. A record loaded from
// storage for key is validated with the page codec; if it does not decode it
// is replaced by the default.
func Register[F any](s *Store, key string, defaults F, opts ...PageOption) (*Page[F], error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPageKey, key)
	}
	cfg := pageConfig{title: key}
	for _, o := range opts {
		o(&cfg)
	}

	var c codec.Codec[F] = codec.JSON[F]{}
	if cfg.codec != nil {
		typed, ok := cfg.codec.(codec.Codec[F])
		if !ok {
			return nil, fmt.Errorf("pagestate: page %q: codec %T does not encode %T", key, cfg.codec, defaults)
		}
		c = typed
	}

	def, err := c.Encode(defaults)
	if err != nil {
		return nil, fmt.Errorf("pagestate: page %q: encode defaults: %w", key, err)
	}

	p := &Page[F]{s: s, key: key, title: cfg.title, codec: c, defaults: def}

	s.mu.Lock()
	if _, dup := s.pages[key]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicatePage, key)
	}
	s.pages[key] = &pageMeta{title: cfg.title, defaults: def}

	dropped := false
	if e, ok := s.records[key]; ok {
		if _, err := c.Decode(e.raw); err != nil {
			s.records[key] = &entry{raw: def, lastFetched: 0, version: e.version + 1}
			s.dirty = true
			dropped = true
		}
	}
	s.mu.Unlock()

	if dropped {
		s.log.Warn("stored page state did not decode; using defaults", Fields{"page": key})
		s.hooks.RecordDropped(key, "decode_error")
		s.schedule()
	}
	return p, nil
}

// Key returns the page key.
func (p *Page[F]) Key() string { return p.key }

// Title returns the page title.
func (p *Page[F]) Title() string { return p.title }

// Store returns the owning store.
func (p *Page[F]) Store() *Store { return p.s }

func (p *Page[F]) current() (raw []byte, last int64, version uint64) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if e, ok := p.s.records[p.key]; ok {
		return e.raw, e.lastFetched, e.version
	}
	return p.defaults, 0, 0
}

func (p *Page[F]) decode(raw []byte) F {
	v, err := p.codec.Decode(raw)
	if err != nil {
		// records are validated on Register and written by this codec
		v, _ = p.codec.Decode(p.defaults)
	}
	return v
}

// Get returns the current record or the page default. It never fails, and
// every call returns an independent copy.
func (p *Page[F]) Get() Record[F] {
	raw, last, ver := p.current()
	return Record[F]{PageKey: p.key, Fields: p.decode(raw), LastFetched: last, Version: ver}
}

// Set applies patch to the current fields, stamps LastFetched and schedules a
// persist. Subsequent Gets observe the write. Only an encoding failure is
// returned; storage errors never are.
func (p *Page[F]) Set(patch Patch[F]) error {
	_, err := p.update(nil, patch)
	return err
}

// Replace overwrites all fields.
func (p *Page[F]) Replace(fields F) error {
	return p.Set(func(f *F) { *f = fields })
}

// SetIfVersion writes only if the record version still equals observed
// (read it from Get().Version). It reports whether the write happened.
func (p *Page[F]) SetIfVersion(observed uint64, patch Patch[F]) (bool, error) {
	return p.update(&observed, patch)
}

func (p *Page[F]) update(observed *uint64, patch Patch[F]) (bool, error) {
	for {
		raw, _, ver := p.current()
		if observed != nil && *observed != ver {
			p.staleWrite(*observed, ver)
			return false, nil
		}

		fields := p.decode(raw)
		patch(&fields)
		next, err := p.codec.Encode(fields)
		if err != nil {
			return false, fmt.Errorf("pagestate: page %q: encode: %w", p.key, err)
		}

		p.s.mu.Lock()
		cur := uint64(0)
		if e, ok := p.s.records[p.key]; ok {
			cur = e.version
		}
		if cur != ver {
			p.s.mu.Unlock()
			if observed != nil {
				p.staleWrite(*observed, cur)
				return false, nil
			}
			continue // lost a race; re-apply on the newer record
		}
		p.s.writeLocked(p.key, next)
		p.s.mu.Unlock()

		p.s.schedule()
		return true, nil
	}
}

func (p *Page[F]) staleWrite(observed, current uint64) {
	p.s.log.Debug("SetIfVersion skipped (version mismatch)", Fields{"page": p.key, "obs": observed, "cur": current})
	p.s.hooks.StaleWriteSkipped(p.key, observed, current)
}

// Reset replaces the record with the page default.
func (p *Page[F]) Reset() { p.s.Reset(p.key) }

// CacheAgeMinutes is Store.CacheAgeMinutes for this page.
func (p *Page[F]) CacheAgeMinutes() int { return p.s.CacheAgeMinutes(p.key) }

// IsStale is Store.IsStale for this page.
func (p *Page[F]) IsStale(threshold time.Duration) bool { return p.s.IsStale(p.key, threshold) }

// Mount is what a page needs when it is shown.
type Mount[F any] struct {
	Record Record[F]
	// Stale suggests a background refresh while Record is displayed.
	Stale bool
	// Notice is set when Record was restored from an earlier visit.
	Notice *Notice
}

// Mount reads the record for display and, when it holds state from an
// earlier visit, starts a resume notice.
func (p *Page[F]) Mount() Mount[F] {
	rec := p.Get()
	m := Mount[F]{Record: rec}
	if !rec.Visited() {
		return m
	}
	m.Stale = p.s.isStaleAt(rec.LastFetched, 0)
	m.Notice = p.s.newNotice(p.key, p.title, rec.LastFetchedTime(), p.Reset)
	return m
}
