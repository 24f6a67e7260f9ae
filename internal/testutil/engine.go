package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/radcache/internal/extract"
)

// ErrEngineFailed is returned by a SpyEngine configured to fail.
var ErrEngineFailed = errors.New("engine failed")

// SpyEngine is a deterministic extract.Engine that records every request.
//
// For each requested feature it returns Values[resultKey] when present and
// otherwise the length of the result key, so expected values can be worked
// out by hand.
//
// Thread-safety: all methods are safe for concurrent use.
type SpyEngine struct {
	mu       sync.Mutex
	Values   map[string]float64
	Fail     bool
	Omit     map[string]bool
	requests []extract.Request
}

// NewSpyEngine creates a spy engine with optional fixed values.
func NewSpyEngine(values map[string]float64) *SpyEngine {
	return &SpyEngine{Values: values}
}

// Execute implements extract.Engine.
func (e *SpyEngine) Execute(_ context.Context, req extract.Request) (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.Fail {
		return nil, ErrEngineFailed
	}
	out := make(map[string]float64)
	for class, names := range req.Features {
		for _, name := range names {
			key := class + "_" + name
			if e.Omit[key] {
				continue
			}
			if v, ok := e.Values[key]; ok {
				out[key] = v
				continue
			}
			out[key] = float64(len(key))
		}
	}
	return out, nil
}

// Calls returns the number of Execute calls so far.
func (e *SpyEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// Requests returns a copy of the recorded requests.
func (e *SpyEngine) Requests() []extract.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]extract.Request(nil), e.requests...)
}

// SetFail switches failure mode on or off.
func (e *SpyEngine) SetFail(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Fail = fail
}

// Reset forgets recorded requests.
func (e *SpyEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = nil
}
