package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/radcache/internal/model"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, known ...model.FeatureID) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.db")
	s, err := Open(path, known...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testKey builds a condition key with the common test patient.
func testKey(nodule, annotation, levels int, noise float64) model.ConditionKey {
	return model.ConditionKey{
		PatientID:    "AA-00",
		NoduleID:     nodule,
		AnnotationID: annotation,
		NumLevels:    levels,
		NoiseScale:   noise,
	}
}

// createLegacyDB writes a features table the way earlier tooling did:
// lowercase types, no index, user_version 0.
func createLegacyDB(t *testing.T, path string, inserts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()

	stmts := append([]string{
		"CREATE TABLE features (patient_id text, nodule_id integer, annotation_id integer, " +
			"num_levels integer, noise_scale real, firstorder_Entropy real, glcm_JointAvg real)",
	}, inserts...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// countRows returns the number of rows matching key.
func countRows(t *testing.T, s *Store, key model.ConditionKey) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM features
		WHERE patient_id = ? AND nodule_id = ? AND annotation_id = ? AND num_levels = ? AND noise_scale = ?
	`, key.PatientID, key.NoduleID, key.AnnotationID, key.NumLevels, key.NoiseScale).Scan(&n)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

// hasConditionIndex reports whether the unique key index exists.
func hasConditionIndex(t *testing.T, db *sql.DB) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_features_condition'").Scan(&n)
	if err != nil {
		t.Fatalf("query index: %v", err)
	}
	return n > 0
}
