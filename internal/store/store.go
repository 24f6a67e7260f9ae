package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/radcache/internal/model"
)

// Schema version tracking:
// 0 - Initial layout (no uniqueness guard)
// 1 - Added UNIQUE index on the five key columns
const currentSchemaVersion = 1

const tableName = "features"

// keyColumns are the condition key columns with their declared types, in
// table order.
var keyColumns = []struct {
	name string
	typ  string
}{
	{"patient_id", "TEXT"},
	{"nodule_id", "INTEGER"},
	{"annotation_id", "INTEGER"},
	{"num_levels", "INTEGER"},
	{"noise_scale", "REAL"},
}

// Store is the persistent feature memoization table.
// A Store is intended to be held open by a single process for a run.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	columns map[model.FeatureID]string
	order   []model.FeatureID
}

// Open opens the store at path, creating an empty one if the file does not
// exist yet. Every identifier in known gets a column, so a new store starts
// with the full expected schema and an existing store is extended to it.
//
// Returns a StorageError if the file exists but is not a feature store.
func Open(path string, known ...model.FeatureID) (*Store, error) {
	return open(path, false, known)
}

// OpenExisting opens a store that must already exist. Its feature
// identifiers are discovered from the table's columns.
//
// The file is not modified: legacy stores are checked for duplicate keys
// but are neither indexed nor stamped with the current schema version.
func OpenExisting(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &StorageError{Path: path, Message: "database file not found", Err: err}
	}
	return open(path, true, nil)
}

func open(path string, mustExist bool, known []model.FeatureID) (*Store, error) {
	for _, id := range known {
		if !id.Valid() {
			return nil, fmt.Errorf("open store: malformed feature identifier %q", id)
		}
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StorageError{Path: path, Message: "failed to open database", Err: err}
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Message: "failed to connect to database", Err: err}
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:      db,
		path:    path,
		columns: make(map[model.FeatureID]string),
	}

	if err := s.init(mustExist, known); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(mustExist bool, known []model.FeatureID) error {
	if err := applyPragmas(s.db, mustExist); err != nil {
		return &StorageError{Path: s.path, Message: "failed to apply pragmas", Err: err}
	}

	exists, err := tableExists(s.db)
	if err != nil {
		return &StorageError{Path: s.path, Message: "failed to inspect schema", Err: err}
	}
	if !exists {
		if mustExist {
			return &StorageError{Path: s.path, Message: "no features table"}
		}
		others, err := tableCount(s.db)
		if err != nil {
			return &StorageError{Path: s.path, Message: "failed to inspect schema", Err: err}
		}
		if others > 0 {
			return &StorageError{Path: s.path, Message: "not a feature store"}
		}
		if err := createTable(s.db, known); err != nil {
			return &StorageError{Path: s.path, Message: "failed to create features table", Err: err}
		}
	}

	if err := s.loadColumns(); err != nil {
		return err
	}

	if mustExist {
		return s.checkSchema()
	}

	if err := s.runMigrations(); err != nil {
		return err
	}

	ctx := context.Background()
	for _, id := range known {
		if _, err := s.ensureColumn(ctx, id); err != nil {
			return &StorageError{Path: s.path, Message: "failed to add feature column", Err: err}
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration. Switching the journal
// mode can rewrite the file header, so read-only opens leave it alone.
func applyPragmas(db *sql.DB, readOnly bool) error {
	pragmas := []string{
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	if !readOnly {
		pragmas = append([]string{"PRAGMA journal_mode = DELETE"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func tableExists(db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tableName,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// tableCount returns the number of user tables in the database.
func tableCount(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'",
	).Scan(&n)
	return n, err
}

func createTable(db *sql.DB, known []model.FeatureID) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(tableName)
	b.WriteString(" (")
	for i, kc := range keyColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(kc.name)
		b.WriteString(" ")
		b.WriteString(kc.typ)
	}
	seen := make(map[string]struct{}, len(known))
	for _, id := range known {
		col, err := id.Column()
		if err != nil {
			return err
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		b.WriteString(", ")
		b.WriteString(quoteIdent(col))
		b.WriteString(" REAL")
	}
	b.WriteString(")")

	_, err := db.Exec(b.String())
	return err
}

// runMigrations applies incremental schema migrations based on user_version.
func (s *Store) runMigrations() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return &StorageError{Path: s.path, Message: "failed to set user_version", Err: err}
	}
	return nil
}

// checkSchema validates an existing store without writing to it.
func (s *Store) checkSchema() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version < 1 {
		return s.checkDuplicates()
	}
	return nil
}

// schemaVersion reads user_version, rejecting files written by a newer
// schema.
func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, &StorageError{Path: s.path, Message: "failed to read user_version", Err: err}
	}
	if version > currentSchemaVersion {
		return 0, &StorageError{Path: s.path, Message: fmt.Sprintf("unsupported schema version %d", version)}
	}
	return version, nil
}

// checkDuplicates reports the first condition key held by more than one row.
func (s *Store) checkDuplicates() error {
	row := s.db.QueryRow(`
		SELECT patient_id, nodule_id, annotation_id, num_levels, noise_scale, COUNT(*)
		FROM features
		GROUP BY patient_id, nodule_id, annotation_id, num_levels, noise_scale
		HAVING COUNT(*) > 1
		LIMIT 1
	`)
	var key model.ConditionKey
	var n int
	err := row.Scan(&key.PatientID, &key.NoduleID, &key.AnnotationID, &key.NumLevels, &key.NoiseScale, &n)
	switch {
	case err == nil:
		return &ConsistencyError{Key: key, Rows: n}
	case !errors.Is(err, sql.ErrNoRows):
		return &StorageError{Path: s.path, Message: "duplicate scan failed", Err: err}
	}
	return nil
}

// migrateToV1 adds the UNIQUE index backing the upsert. Tables that already
// hold duplicate keys cannot be indexed and are reported as inconsistent.
func (s *Store) migrateToV1() error {
	if err := s.checkDuplicates(); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_features_condition
		ON features(patient_id, nodule_id, annotation_id, num_levels, noise_scale)
	`)
	if err != nil {
		return &StorageError{Path: s.path, Message: "migrate to v1", Err: err}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
