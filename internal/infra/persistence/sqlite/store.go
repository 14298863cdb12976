// Package sqlite provides a SQLite-backed persistent store. Transactions run
// against the embedded in-memory store; after every successful commit the
// full state is written to normalized tables whose constraints mirror the
// domain's uniqueness and cascade rules.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"procedurecore/internal/infra/persistence/memory"
	"procedurecore/internal/schema/sqlbundle"
	"procedurecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "procedurecore.db"

// Store persists the in-memory state to SQLite after every successful transaction.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path, applies the schema DDL,
// and hydrates the in-memory store from any existing rows.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply ddl: %w", err)
		}
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

// RunInTransaction applies fn in memory, then writes the resulting state to
// SQLite. A persistence failure is reported to the caller; the durable state
// keeps its previous snapshot because the write runs in one sql transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Procedures: map[string]domain.Procedure{},
		Revisions:  map[string]domain.Revision{},
		DataFields: map[string]domain.DataField{},
	}

	rows, err := db.QueryContext(ctx, `SELECT id, title, created_at, updated_at FROM procedures`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select procedures: %w", err)
	}
	if err := scanProcedures(rows, snapshot.Procedures); err != nil {
		return memory.Snapshot{}, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, procedure_id, revision_number, reference_document_title, reference_document_url, is_published, created_at, updated_at FROM procedure_revisions`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select revisions: %w", err)
	}
	if err := scanRevisions(rows, snapshot.Revisions); err != nil {
		return memory.Snapshot{}, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, procedure_id, name, field_type, unit, created_at, updated_at FROM data_fields`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select data fields: %w", err)
	}
	if err := scanDataFields(rows, snapshot.DataFields); err != nil {
		return memory.Snapshot{}, err
	}

	return snapshot, nil
}

func scanProcedures(rows *sql.Rows, dest map[string]domain.Procedure) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p domain.Procedure
		var created, updated string
		if err := rows.Scan(&p.ID, &p.Title, &created, &updated); err != nil {
			return fmt.Errorf("scan procedure: %w", err)
		}
		var err error
		if p.CreatedAt, err = decodeTime(created); err != nil {
			return fmt.Errorf("decode procedure created_at: %w", err)
		}
		if p.UpdatedAt, err = decodeTime(updated); err != nil {
			return fmt.Errorf("decode procedure updated_at: %w", err)
		}
		dest[p.ID] = p
	}
	return rows.Err()
}

func scanRevisions(rows *sql.Rows, dest map[string]domain.Revision) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var r domain.Revision
		var created, updated string
		if err := rows.Scan(&r.ID, &r.ProcedureID, &r.RevisionNumber, &r.ReferenceDocumentTitle, &r.ReferenceDocumentURL, &r.Published, &created, &updated); err != nil {
			return fmt.Errorf("scan revision: %w", err)
		}
		var err error
		if r.CreatedAt, err = decodeTime(created); err != nil {
			return fmt.Errorf("decode revision created_at: %w", err)
		}
		if r.UpdatedAt, err = decodeTime(updated); err != nil {
			return fmt.Errorf("decode revision updated_at: %w", err)
		}
		dest[r.ID] = r
	}
	return rows.Err()
}

func scanDataFields(rows *sql.Rows, dest map[string]domain.DataField) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f domain.DataField
		var fieldType, created, updated string
		if err := rows.Scan(&f.ID, &f.ProcedureID, &f.Name, &fieldType, &f.Unit, &created, &updated); err != nil {
			return fmt.Errorf("scan data field: %w", err)
		}
		f.FieldType = domain.FieldType(fieldType)
		var err error
		if f.CreatedAt, err = decodeTime(created); err != nil {
			return fmt.Errorf("decode data field created_at: %w", err)
		}
		if f.UpdatedAt, err = decodeTime(updated); err != nil {
			return fmt.Errorf("decode data field updated_at: %w", err)
		}
		dest[f.ID] = f
	}
	return rows.Err()
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	// children first to respect foreign keys on the way down
	for _, stmt := range []string{`DELETE FROM data_fields`, `DELETE FROM procedure_revisions`, `DELETE FROM procedures`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			retErr = fmt.Errorf("clear tables: %w", err)
			return retErr
		}
	}

	for _, p := range snapshot.Procedures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO procedures(id, title, created_at, updated_at) VALUES(?,?,?,?)`,
			p.ID, p.Title, encodeTime(p.CreatedAt), encodeTime(p.UpdatedAt)); err != nil {
			retErr = fmt.Errorf("insert procedure %s: %w", p.ID, err)
			return retErr
		}
	}
	for _, r := range snapshot.Revisions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO procedure_revisions(id, procedure_id, revision_number, reference_document_title, reference_document_url, is_published, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?)`,
			r.ID, r.ProcedureID, r.RevisionNumber, r.ReferenceDocumentTitle, r.ReferenceDocumentURL, r.Published, encodeTime(r.CreatedAt), encodeTime(r.UpdatedAt)); err != nil {
			retErr = fmt.Errorf("insert revision %s: %w", r.ID, err)
			return retErr
		}
	}
	for _, f := range snapshot.DataFields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO data_fields(id, procedure_id, name, field_type, unit, created_at, updated_at) VALUES(?,?,?,?,?,?,?)`,
			f.ID, f.ProcedureID, f.Name, string(f.FieldType), f.Unit, encodeTime(f.CreatedAt), encodeTime(f.UpdatedAt)); err != nil {
			retErr = fmt.Errorf("insert data field %s: %w", f.ID, err)
			return retErr
		}
	}

	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return retErr
	}
	return nil
}
