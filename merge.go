package pagestate

// Map is the field type of pages without a fixed shape.
type Map = map[string]any

// MapPatch deep merges partial into a Map page. Nested maps merge key by key
// so sibling keys survive; any other value (slices included) replaces the old
// one whole; a nil value removes the key.
//
//	// {filters: {minScore: 0, maxScore: 100}} -> {filters: {minScore: 10, maxScore: 100}}
//	_ = page.Set(pagestate.MapPatch(pagestate.Map{"filters": pagestate.Map{"minScore": 10}}))
func MapPatch(partial Map) Patch[Map] {
	return func(m *Map) {
		if *m == nil {
			*m = make(Map, len(partial))
		}
		mergeInto(*m, partial)
	}
}

func mergeInto(dst, src Map) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		sub, ok := v.(Map)
		if !ok {
			dst[k] = v
			continue
		}
		cur, ok := dst[k].(Map)
		if !ok {
			cur = make(Map, len(sub))
		}
		mergeInto(cur, sub)
		dst[k] = cur
	}
}
