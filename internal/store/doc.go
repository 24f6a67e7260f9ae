// Package store provides the SQLite-backed feature memoization table.
//
// The table holds one row per condition key and one REAL column per known
// feature identifier:
//
//	features(patient_id TEXT, nodule_id INTEGER, annotation_id INTEGER,
//	         num_levels INTEGER, noise_scale REAL, <class>_<name> REAL, ...)
//
// # Invariants
//
//   - At most one row per (patient_id, nodule_id, annotation_id, num_levels,
//     noise_scale). Enforced by a UNIQUE index from schema version 1 on, and
//     re-checked on every read. A second matching row is a ConsistencyError.
//   - Feature columns are added on first write and never dropped. A NULL slot
//     means "not computed", which is distinct from a stored 0.0.
//   - Identifier "a/b" lives in column "a_b"; the mapping is kept in an
//     in-memory registry loaded from PRAGMA table_info at open.
//   - Every write is a single upsert statement committed before return.
//
// # Database Configuration
//
//   - journal_mode=DELETE: the store is one file, no -wal/-shm sidecars
//   - synchronous=FULL: a returned write survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Files written by earlier tooling (no UNIQUE index, user_version 0) are
// migrated in place on open.
package store
