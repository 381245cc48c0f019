// Package pagestate persists per-page UI state (filters, selections, toggles,
// pagination) across navigation and restarts, and tells the UI how old the
// restored state is.
//
// Components:
//   - Store: process-wide record set, one record per page key, last write wins.
//     Mutations are applied in memory first and flushed to a Provider in the
//     background (or inline with Options.Synchronous).
//   - Page[F]: typed handle for one page. F is the page's own field type,
//     serialized by a pluggable Codec[F] (JSON by default). Map is provided for
//     pages without a fixed shape.
//   - Provider: durable byte store (file, Redis, Postgres, BigCache, Ristretto).
//
// Keys:
//
//	pagestate:<ns> - one snapshot holding every page record of the namespace
//
// Typical page mount:
//
//	m := jobs.Mount()       // cached state, shown immediately
//	render(m.Record.Fields)
//	if m.Stale {
//		go refresh()        // stale-while-revalidate; nothing is evicted
//	}
//	if m.Notice != nil {
//		toast(m.Notice.Message(), m.Notice.ResetToDefaults)
//	}
//
// Writes:
//
//	_ = jobs.Set(func(f *JobsState) { f.MinMatchScore = 50 }) // siblings keep their value
package pagestate
