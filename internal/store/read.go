package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/radcache/internal/model"
)

// Sample is one observer's stored value for a feature.
type Sample struct {
	AnnotationID int
	Value        float64
	// Valid is false when the row exists but the slot is not computed.
	Valid bool
}

// ReadValue returns the stored value for key and id. The second result is
// false when no row matches key, or the row has no value for id.
//
// Returns a ConsistencyError if more than one row matches key.
func (s *Store) ReadValue(ctx context.Context, key model.ConditionKey, id model.FeatureID) (float64, bool, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return 0, false, fmt.Errorf("read value: %w", err)
	}

	// Unknown features still probe the key so duplicate rows are reported.
	selectExpr := "NULL"
	if col, ok := s.column(id); ok {
		selectExpr = quoteIdent(col)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM features
		WHERE patient_id = ? AND nodule_id = ? AND annotation_id = ?
		AND num_levels = ? AND noise_scale = ?
		LIMIT 2
	`, selectExpr),
		key.PatientID, key.NoduleID, key.AnnotationID, key.NumLevels, key.NoiseScale,
	)
	if err != nil {
		return 0, false, fmt.Errorf("read value %s %s: %w", key, id, err)
	}
	defer rows.Close()

	var (
		value sql.NullFloat64
		n     int
	)
	for rows.Next() {
		n++
		if n > 1 {
			return 0, false, &ConsistencyError{Key: key, Rows: n}
		}
		if err := rows.Scan(&value); err != nil {
			return 0, false, fmt.Errorf("scan value %s %s: %w", key, id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterate value %s %s: %w", key, id, err)
	}

	if n == 0 || !value.Valid {
		return 0, false, nil
	}
	return value.Float64, true, nil
}

// PatientIDs returns the distinct patient ids, sorted.
func (s *Store) PatientIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT patient_id FROM features
		ORDER BY patient_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query patient ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan patient id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient ids: %w", err)
	}
	return ids, nil
}

// NoduleIDs returns the distinct nodule ids stored for patientID, ascending.
func (s *Store) NoduleIDs(ctx context.Context, patientID string) ([]int, error) {
	return s.queryInts(ctx, "nodule ids", `
		SELECT DISTINCT nodule_id FROM features
		WHERE patient_id = ?
		ORDER BY nodule_id ASC
	`, model.NormalizePatientID(patientID))
}

// AnnotationIDs returns the distinct observer annotation ids stored for a
// nodule, ascending. The consensus sentinel is excluded.
func (s *Store) AnnotationIDs(ctx context.Context, patientID string, noduleID int) ([]int, error) {
	return s.queryInts(ctx, "annotation ids", `
		SELECT DISTINCT annotation_id FROM features
		WHERE patient_id = ? AND nodule_id = ? AND annotation_id != ?
		ORDER BY annotation_id ASC
	`, model.NormalizePatientID(patientID), noduleID, model.ConsensusAnnotation)
}

// ValuesAcrossAnnotations returns one Sample per observer row of a nodule
// under the given quantization and noise, ordered by annotation id. The
// consensus row is never included.
func (s *Store) ValuesAcrossAnnotations(ctx context.Context, patientID string, noduleID int, id model.FeatureID, numLevels int, noiseScale float64) ([]Sample, error) {
	selectExpr := "NULL"
	if col, ok := s.column(id); ok {
		selectExpr = quoteIdent(col)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT annotation_id, %s FROM features
		WHERE patient_id = ? AND nodule_id = ? AND num_levels = ? AND noise_scale = ?
		AND annotation_id != ?
		ORDER BY annotation_id ASC
	`, selectExpr),
		model.NormalizePatientID(patientID), noduleID, numLevels, noiseScale, model.ConsensusAnnotation,
	)
	if err != nil {
		return nil, fmt.Errorf("query values across annotations: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var (
			annotationID int
			value        sql.NullFloat64
		)
		if err := rows.Scan(&annotationID, &value); err != nil {
			return nil, fmt.Errorf("scan values across annotations: %w", err)
		}
		samples = append(samples, Sample{AnnotationID: annotationID, Value: value.Float64, Valid: value.Valid})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values across annotations: %w", err)
	}
	return samples, nil
}

// ConsensusValue returns the value stored on the consensus row of a nodule.
func (s *Store) ConsensusValue(ctx context.Context, patientID string, noduleID int, id model.FeatureID, numLevels int, noiseScale float64) (float64, bool, error) {
	return s.ReadValue(ctx, model.ConditionKey{
		PatientID:    patientID,
		NoduleID:     noduleID,
		AnnotationID: model.ConsensusAnnotation,
		NumLevels:    numLevels,
		NoiseScale:   noiseScale,
	}, id)
}

// Stats summarizes table occupancy.
type Stats struct {
	Rows int64
	// Populated counts the non-NULL slots per feature.
	Populated map[model.FeatureID]int64
}

// Stats returns the row count and per-feature populated slot counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ids := s.FeatureIDs()
	exprs := "COUNT(*)"
	for _, id := range ids {
		col, _ := s.column(id)
		exprs += fmt.Sprintf(", COUNT(%s)", quoteIdent(col))
	}

	counts := make([]int64, len(ids)+1)
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := s.db.QueryRowContext(ctx, "SELECT "+exprs+" FROM features").Scan(dest...); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	st := Stats{Rows: counts[0], Populated: make(map[model.FeatureID]int64, len(ids))}
	for i, id := range ids {
		st.Populated[id] = counts[i+1]
	}
	return st, nil
}

func (s *Store) queryInts(ctx context.Context, what, query string, args ...any) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}
