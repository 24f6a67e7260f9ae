package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/radcache/internal/model"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")

	s, err := Open(path, "firstorder/Entropy", "firstorder/Kurtosis")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	got := s.FeatureIDs()
	if len(got) != 2 || got[0] != "firstorder/Entropy" || got[1] != "firstorder/Kurtosis" {
		t.Errorf("FeatureIDs() = %v", got)
	}
}

func TestOpen_ReopenPreservesRowsAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "features.db")

	s1, err := Open(path, "firstorder/Entropy")
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.WriteValue(ctx, testKey(1, 0, 128, 0), "firstorder/Entropy", 1.5); err != nil {
		t.Fatalf("WriteValue() failed: %v", err)
	}
	if err := s1.WriteValue(ctx, testKey(1, 0, 128, 0), "glcm/Contrast", 2.5); err != nil {
		t.Fatalf("WriteValue() failed: %v", err)
	}
	s1.Close()

	// Reopen with a smaller known set; the grown schema must survive.
	s2, err := Open(path, "firstorder/Entropy")
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	if !s2.HasFeature("glcm/Contrast") {
		t.Error("column added at runtime lost on reopen")
	}
	v, ok, err := s2.ReadValue(ctx, testKey(1, 0, 128, 0), "glcm/Contrast")
	if err != nil || !ok || v != 2.5 {
		t.Errorf("ReadValue() = %v, %v, %v; want 2.5, true, nil", v, ok, err)
	}
}

func TestOpen_ExtendsExistingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")

	s1, err := Open(path, "firstorder/Entropy")
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path, "firstorder/Entropy", "glrlm/SRE")
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	if !s2.HasFeature("glrlm/SRE") {
		t.Error("known feature missing after reopen")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, "firstorder/Entropy")
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	if got := s.FeatureIDs(); len(got) != 1 {
		t.Errorf("FeatureIDs() = %v, want one column", got)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/features.db")
	if err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
	if !IsStorageError(err) {
		t.Errorf("expected StorageError, got %T: %v", err, err)
	}
}

func TestOpen_RejectsMalformedKnownID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	if _, err := Open(path, "not an id"); err == nil {
		t.Fatal("expected error for malformed identifier")
	}
}

func TestOpen_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	junk := []byte(strings.Repeat("not an sqlite file ", 256))
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestOpen_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
	}{
		{"missing key column", "CREATE TABLE features (patient_id TEXT, nodule_id INTEGER, annotation_id INTEGER, num_levels INTEGER)"},
		{"wrong key type", "CREATE TABLE features (patient_id INTEGER, nodule_id INTEGER, annotation_id INTEGER, num_levels INTEGER, noise_scale REAL)"},
		{"foreign column", "CREATE TABLE features (patient_id TEXT, nodule_id INTEGER, annotation_id INTEGER, num_levels INTEGER, noise_scale REAL, notes TEXT)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "features.db")
			s, err := Open(path)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			if _, err := s.db.Exec("DROP TABLE features"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.db.Exec(tt.ddl); err != nil {
				t.Fatal(err)
			}
			s.Close()

			_, err = Open(path)
			if !IsStorageError(err) {
				t.Errorf("expected StorageError, got %v", err)
			}
		})
	}
}

func TestOpen_ForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("CREATE TABLE users (id INTEGER, name TEXT)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = Open(path, "firstorder/Entropy")
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !strings.Contains(err.Error(), "not a feature store") {
		t.Errorf("error = %v", err)
	}

	db, err = sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'features'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("Open must not add a features table to a foreign database")
	}
}

func TestOpenExisting_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")

	_, err := OpenExisting(path)
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("OpenExisting must not create the file")
	}
}

func TestOpenExisting_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenExisting(path)
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError for file without features table, got %v", err)
	}
}

func TestOpenExisting_DiscoversFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	s1, err := Open(path, "firstorder/Entropy", "shape3D/MaxAxialDiameter", "glcm/IMC1")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s1.Close()

	s2, err := OpenExisting(path)
	if err != nil {
		t.Fatalf("OpenExisting() failed: %v", err)
	}
	defer s2.Close()

	want := []model.FeatureID{"firstorder/Entropy", "shape3D/MaxAxialDiameter", "glcm/IMC1"}
	got := s2.FeatureIDs()
	if len(got) != len(want) {
		t.Fatalf("FeatureIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FeatureIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "delete"); err != nil {
		t.Error(err)
	}
}

func TestPragma_SynchronousFull(t *testing.T) {
	s := createTestStore(t)
	// FULL = 2
	if err := s.verifyPragma("synchronous", "2"); err != nil {
		t.Error(err)
	}
}

func TestPragma_UserVersion(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

// Migration tests

func TestMigration_LegacyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	createLegacyDB(t, path,
		"INSERT INTO features (patient_id, nodule_id, annotation_id, num_levels, noise_scale, firstorder_Entropy) VALUES ('AA-00', 1, 0, 128, 0.05, 0.01)",
	)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	if !hasConditionIndex(t, s.db) {
		t.Error("unique index not created")
	}

	ids := s.FeatureIDs()
	if len(ids) != 2 || ids[0] != "firstorder/Entropy" || ids[1] != "glcm/JointAvg" {
		t.Errorf("FeatureIDs() = %v", ids)
	}

	// The legacy row is reachable and upserts now go through the index.
	key := testKey(1, 0, 128, 0.05)
	if err := s.WriteValue(ctx, key, "glcm/JointAvg", 3); err != nil {
		t.Fatalf("WriteValue() failed: %v", err)
	}
	if n := countRows(t, s, key); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	v, ok, err := s.ReadValue(ctx, key, "firstorder/Entropy")
	if err != nil || !ok || v != 0.01 {
		t.Errorf("ReadValue() = %v, %v, %v", v, ok, err)
	}
}

func TestOpenExisting_LegacyFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")
	createLegacyDB(t, path,
		"INSERT INTO features (patient_id, nodule_id, annotation_id, num_levels, noise_scale, firstorder_Entropy) VALUES ('AA-00', 1, 0, 128, 0.05, 0.01)",
	)

	s, err := OpenExisting(path)
	if err != nil {
		t.Fatalf("OpenExisting() failed: %v", err)
	}
	v, ok, err := s.ReadValue(ctx, testKey(1, 0, 128, 0.05), "firstorder/Entropy")
	if err != nil || !ok || v != 0.01 {
		t.Errorf("ReadValue() = %v, %v, %v", v, ok, err)
	}
	s.Close()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 0 {
		t.Errorf("user_version = %d, want 0", version)
	}
	if hasConditionIndex(t, db) {
		t.Error("OpenExisting must not create the unique index")
	}
}

func TestOpenExisting_LegacyDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	dup := "INSERT INTO features (patient_id, nodule_id, annotation_id, num_levels, noise_scale) VALUES ('AA-00', 1, 0, 128, 0.05)"
	createLegacyDB(t, path, dup, dup)

	_, err := OpenExisting(path)
	if !IsConsistencyError(err) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
}

func TestMigration_LegacyDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	dup := "INSERT INTO features (patient_id, nodule_id, annotation_id, num_levels, noise_scale) VALUES ('AA-00', 1, 0, 128, 0.05)"
	createLegacyDB(t, path, dup, dup)

	_, err := Open(path)
	if !IsConsistencyError(err) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}

	var ce *ConsistencyError
	errors.As(err, &ce)
	if ce.Key.PatientID != "AA-00" || ce.Rows != 2 {
		t.Errorf("ConsistencyError = %+v", ce)
	}
}

func TestMigration_FutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	_, err = Open(path)
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError for future schema version, got %v", err)
	}
}

func TestOpenExisting_FutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	_, err = OpenExisting(path)
	if !IsStorageError(err) {
		t.Fatalf("expected StorageError for future schema version, got %v", err)
	}
}
