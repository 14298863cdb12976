// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics while applying the shared schema DDL on startup.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"procedurecore/internal/infra/persistence/memory"
	"procedurecore/internal/schema/sqlbundle"
	"procedurecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/procedurecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), applies the schema DDL, and hydrates the in-memory store
// from existing rows.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchemaDDL(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies fn in memory, then writes the resulting state to
// Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func applySchemaDDL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.Postgres()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
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
	for rows.Next() {
		var p domain.Procedure
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt); err != nil {
			_ = rows.Close()
			return memory.Snapshot{}, fmt.Errorf("scan procedure: %w", err)
		}
		snapshot.Procedures[p.ID] = p
	}
	if err := closeRows(rows); err != nil {
		return memory.Snapshot{}, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, procedure_id, revision_number, reference_document_title, reference_document_url, is_published, created_at, updated_at FROM procedure_revisions`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select revisions: %w", err)
	}
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.ID, &r.ProcedureID, &r.RevisionNumber, &r.ReferenceDocumentTitle, &r.ReferenceDocumentURL, &r.Published, &r.CreatedAt, &r.UpdatedAt); err != nil {
			_ = rows.Close()
			return memory.Snapshot{}, fmt.Errorf("scan revision: %w", err)
		}
		snapshot.Revisions[r.ID] = r
	}
	if err := closeRows(rows); err != nil {
		return memory.Snapshot{}, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, procedure_id, name, field_type, unit, created_at, updated_at FROM data_fields`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select data fields: %w", err)
	}
	for rows.Next() {
		var f domain.DataField
		var fieldType string
		if err := rows.Scan(&f.ID, &f.ProcedureID, &f.Name, &fieldType, &f.Unit, &f.CreatedAt, &f.UpdatedAt); err != nil {
			_ = rows.Close()
			return memory.Snapshot{}, fmt.Errorf("scan data field: %w", err)
		}
		f.FieldType = domain.FieldType(fieldType)
		snapshot.DataFields[f.ID] = f
	}
	if err := closeRows(rows); err != nil {
		return memory.Snapshot{}, err
	}

	return snapshot, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	return rows.Close()
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM data_fields`, `DELETE FROM procedure_revisions`, `DELETE FROM procedures`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	for _, p := range snapshot.Procedures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO procedures(id, title, created_at, updated_at) VALUES($1,$2,$3,$4)`,
			p.ID, p.Title, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("insert procedure %s: %w", p.ID, err)
		}
	}
	for _, r := range snapshot.Revisions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO procedure_revisions(id, procedure_id, revision_number, reference_document_title, reference_document_url, is_published, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			r.ID, r.ProcedureID, r.RevisionNumber, r.ReferenceDocumentTitle, r.ReferenceDocumentURL, r.Published, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("insert revision %s: %w", r.ID, err)
		}
	}
	for _, f := range snapshot.DataFields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO data_fields(id, procedure_id, name, field_type, unit, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
			f.ID, f.ProcedureID, f.Name, string(f.FieldType), f.Unit, f.CreatedAt, f.UpdatedAt); err != nil {
			return fmt.Errorf("insert data field %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
