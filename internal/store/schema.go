package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/radcache/internal/model"
)

// loadColumns rebuilds the column registry from PRAGMA table_info and checks
// that the key columns are present with their expected types.
func (s *Store) loadColumns() error {
	rows, err := s.db.Query("PRAGMA table_info(features)")
	if err != nil {
		return &StorageError{Path: s.path, Message: "failed to read table info", Err: err}
	}
	defer rows.Close()

	keyTypes := make(map[string]string, len(keyColumns))
	var featureCols []string
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return &StorageError{Path: s.path, Message: "failed to scan table info", Err: err}
		}
		if isKeyColumn(name) {
			keyTypes[name] = strings.ToUpper(typ)
			continue
		}
		featureCols = append(featureCols, name)
	}
	if err := rows.Err(); err != nil {
		return &StorageError{Path: s.path, Message: "failed to iterate table info", Err: err}
	}

	for _, kc := range keyColumns {
		typ, ok := keyTypes[kc.name]
		if !ok {
			return &StorageError{Path: s.path, Message: fmt.Sprintf("missing key column %q", kc.name)}
		}
		if typ != kc.typ {
			return &StorageError{Path: s.path, Message: fmt.Sprintf("key column %q has type %s, expected %s", kc.name, typ, kc.typ)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = make(map[model.FeatureID]string, len(featureCols))
	s.order = s.order[:0]
	for _, col := range featureCols {
		id, err := model.FeatureIDFromColumn(col)
		if err != nil {
			return &StorageError{Path: s.path, Message: "unexpected column", Err: err}
		}
		s.columns[id] = col
		s.order = append(s.order, id)
	}
	return nil
}

// ensureColumn returns the column for id, adding it to the table first if
// the schema does not have one yet. Returns true if the schema grew.
func (s *Store) ensureColumn(ctx context.Context, id model.FeatureID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.columns[id]; ok {
		return false, nil
	}
	col, err := id.Column()
	if err != nil {
		return false, err
	}

	// Existing rows read NULL for the new slot.
	ddl := fmt.Sprintf("ALTER TABLE features ADD COLUMN %s REAL", quoteIdent(col))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return false, fmt.Errorf("add column %s: %w", col, err)
	}
	s.columns[id] = col
	s.order = append(s.order, id)
	return true, nil
}

// column returns the column name for id, if the schema has one.
func (s *Store) column(id model.FeatureID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.columns[id]
	return col, ok
}

// FeatureIDs returns the identifiers that have a column, in column order.
func (s *Store) FeatureIDs() []model.FeatureID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FeatureID(nil), s.order...)
}

// HasFeature reports whether id has a column.
func (s *Store) HasFeature(id model.FeatureID) bool {
	_, ok := s.column(id)
	return ok
}

func isKeyColumn(name string) bool {
	for _, kc := range keyColumns {
		if kc.name == name {
			return true
		}
	}
	return false
}
