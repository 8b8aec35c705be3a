package llmtools

import "sync"

// NamePair links a tool's Go identifier to the name exposed to the LLM.
type NamePair struct {
	Internal string
	External string
}

// NameMapping is an ordered, bidirectional table of tool names. Safe for
// concurrent use. The zero value is ready to use.
type NameMapping struct {
	mu    sync.RWMutex
	pairs []NamePair
}

// NewNameMapping returns a mapping holding pairs.
func NewNameMapping(pairs ...NamePair) *NameMapping {
	m := &NameMapping{}
	for _, p := range pairs {
		m.Add(p.Internal, p.External)
	}
	return m
}

// Add records a pair. A pair with the same external name is replaced.
func (m *NameMapping) Add(internal, external string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pairs {
		if p.External == external {
			m.pairs[i].Internal = internal
			return
		}
	}
	m.pairs = append(m.pairs, NamePair{Internal: internal, External: external})
}

// External returns the exposed name of internal.
func (m *NameMapping) External(internal string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pairs {
		if p.Internal == internal {
			return p.External, true
		}
	}
	return "", false
}

// Internal returns the identifier behind an exposed name.
func (m *NameMapping) Internal(external string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pairs {
		if p.External == external {
			return p.Internal, true
		}
	}
	return "", false
}

// Pairs returns a copy of the pairs in insertion order.
func (m *NameMapping) Pairs() []NamePair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]NamePair(nil), m.pairs...)
}
