// Package resolver serves feature requests from the store and computes
// only what is missing.
//
// For one condition key, Resolve validates every requested identifier,
// reads each from the store, hands all misses to a single Computer call,
// writes every computed value back, and returns values in request order.
// A value that is stored (including 0.0) is never recomputed.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
)

// ErrNoComputer is returned when values are missing and no Computer was given.
var ErrNoComputer = errors.New("features missing and no computer")

// Store is the persistence the resolver reads through.
// *store.Store satisfies it.
type Store interface {
	ReadValue(ctx context.Context, key model.ConditionKey, id model.FeatureID) (float64, bool, error)
	WriteValue(ctx context.Context, key model.ConditionKey, id model.FeatureID, value float64) error
}

// Computer produces values for features missing from the store.
// *extract.Context satisfies it. The result must contain every spec's ID.
type Computer interface {
	Compute(ctx context.Context, key model.ConditionKey, specs []feature.Spec) (map[model.FeatureID]float64, error)
}

// Stats counts resolver activity since construction.
type Stats struct {
	Requests     int // Resolve calls
	Hits         int // values served from the store
	Misses       int // values computed
	Computations int // Computer calls
}

// Resolver is a read-through cache over a Store. It is not safe for
// concurrent use.
type Resolver struct {
	store    Store
	registry *feature.Registry
	logger   *slog.Logger
	stats    Stats
}

// New creates a resolver. A nil registry means feature.Default(); a nil
// logger means slog.Default().
func New(s Store, reg *feature.Registry, logger *slog.Logger) *Resolver {
	if reg == nil {
		reg = feature.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, registry: reg, logger: logger}
}

// Stats returns the counters so far.
func (r *Resolver) Stats() Stats {
	return r.stats
}

// Resolve returns the values of ids under key, in the order of ids.
//
// An unknown identifier fails the call with *feature.InvalidFeatureError
// before anything is read or computed. If computing or storing fails, the
// call fails; values already written during the call stay stored.
func (r *Resolver) Resolve(ctx context.Context, ids []model.FeatureID, key model.ConditionKey, c Computer) ([]float64, error) {
	specs, err := r.registry.Resolve(ids)
	if err != nil {
		return nil, err
	}
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	r.stats.Requests++

	values := make(map[model.FeatureID]float64, len(ids))
	var missing []feature.Spec
	pending := make(map[model.FeatureID]bool)
	for _, s := range specs {
		if _, ok := values[s.ID]; ok || pending[s.ID] {
			continue
		}
		v, ok, err := r.store.ReadValue(ctx, key, s.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", s.ID, err)
		}
		if ok {
			values[s.ID] = v
			r.stats.Hits++
			r.logger.Debug("cache hit", "feature", string(s.ID), "key", key.String())
			continue
		}
		pending[s.ID] = true
		missing = append(missing, s)
	}

	if len(missing) > 0 {
		if c == nil {
			return nil, fmt.Errorf("resolve %s: %d values: %w", key, len(missing), ErrNoComputer)
		}
		r.logger.Info("computing missing features",
			"patient", key.PatientID, "nodule", key.NoduleID, "annotation", key.AnnotationID,
			"levels", key.NumLevels, "noise", key.NoiseScale, "missing", len(missing))

		r.stats.Computations++
		computed, err := c.Compute(ctx, key, missing)
		if err != nil {
			return nil, err
		}
		for _, s := range missing {
			v, ok := computed[s.ID]
			if !ok {
				return nil, fmt.Errorf("resolve %s: computer returned no value for %s", key, s.ID)
			}
			if err := r.store.WriteValue(ctx, key, s.ID, v); err != nil {
				return nil, fmt.Errorf("store %s: %w", s.ID, err)
			}
			values[s.ID] = v
			r.stats.Misses++
		}
	}

	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = values[id]
	}
	return out, nil
}
