package state

// MemoryStore is an in-memory Store. It records how often it was written so
// callers can assert on idempotence.
type MemoryStore struct {
	Entries map[string]string
	Puts    int
	Commits int

	pending map[string]string
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Entries: make(map[string]string),
		pending: make(map[string]string),
	}
}

// Get implements Store
func (m *MemoryStore) Get(key string) (string, bool) {
	if v, ok := m.pending[key]; ok {
		return v, true
	}
	v, ok := m.Entries[key]
	return v, ok
}

// Put implements Store
func (m *MemoryStore) Put(key, value string) {
	m.Puts++
	m.pending[key] = value
}

// Commit implements Store. Only commits with pending entries are counted.
func (m *MemoryStore) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	m.Commits++
	for k, v := range m.pending {
		m.Entries[k] = v
	}
	m.pending = make(map[string]string)
	return nil
}

// Discard drops pending entries, as a crash before Commit would
func (m *MemoryStore) Discard() {
	m.pending = make(map[string]string)
}
