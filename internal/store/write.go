package store

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/radcache/internal/model"
)

// WriteValue stores value in the id slot of the row for key.
//
// Uses a single INSERT ... ON CONFLICT DO UPDATE against the key index: a
// missing row is created with only this slot set, an existing row has just
// this slot overwritten. Writing the same value twice is a no-op.
//
// If id has no column yet the schema is extended first; rows written before
// read NULL for it. The write is committed before WriteValue returns.
func (s *Store) WriteValue(ctx context.Context, key model.ConditionKey, id model.FeatureID, value float64) error {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return fmt.Errorf("write value: %w", err)
	}
	if math.IsNaN(value) {
		return fmt.Errorf("write value %s %s: %w", key, id, ErrNaN)
	}

	if _, err := s.ensureColumn(ctx, id); err != nil {
		return fmt.Errorf("write value: %w", err)
	}
	col, _ := s.column(id)
	qcol := quoteIdent(col)

	query := fmt.Sprintf(`
		INSERT INTO features
		(patient_id, nodule_id, annotation_id, num_levels, noise_scale, %s)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id, nodule_id, annotation_id, num_levels, noise_scale)
		DO UPDATE SET %s = excluded.%s
	`, qcol, qcol, qcol)

	_, err := s.db.ExecContext(ctx, query,
		key.PatientID,
		key.NoduleID,
		key.AnnotationID,
		key.NumLevels,
		key.NoiseScale,
		value,
	)
	if err != nil {
		return fmt.Errorf("write value %s %s: %w", key, id, err)
	}
	return nil
}
