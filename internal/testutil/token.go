package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens generates run tokens "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic output in CLI tests that would otherwise carry
// a fresh UUIDv7 per run.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialTokens creates a generator. An empty prefix becomes "test-run".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *SequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}
