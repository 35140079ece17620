package pgutils

// memo caches lazily computed attributes keyed by attribute name. Values
// stay cached until clear is called; there is no automatic invalidation, so
// mutating the underlying table out-of-band leaves cached values stale.
//
// memo assumes single-threaded use; callers that share an instance across
// goroutines need their own synchronization.
type memo struct {
	values map[string]any
}

func (m *memo) get(key string, compute func() (any, error)) (any, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = v
	return v, nil
}

func (m *memo) clear() {
	m.values = nil
}
