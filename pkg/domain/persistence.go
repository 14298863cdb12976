package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Uniqueness constraints are enforced
// against the transaction snapshot, so concurrent attempts to claim the same
// title, field name, or revision number cannot both commit.
type Transaction interface {
	Snapshot() TransactionView
	CreateProcedure(Procedure) (Procedure, error)
	UpdateProcedure(id string, mutator func(*Procedure) error) (Procedure, error)
	DeleteProcedure(id string) error
	CreateRevision(Revision) (Revision, error)
	UpdateRevision(id string, mutator func(*Revision) error) (Revision, error)
	DeleteRevision(id string) error
	CreateDataField(DataField) (DataField, error)
	UpdateDataField(id string, mutator func(*DataField) error) (DataField, error)
	DeleteDataField(id string) error
	FindProcedure(id string) (Procedure, bool)
	FindRevision(id string) (Revision, bool)
	FindDataField(id string) (DataField, bool)
	ListRevisions(procedureID string) []Revision
	ListDataFields(procedureID string) []DataField
}

// TransactionView provides read-only access to snapshot data. It satisfies
// RuleView so the same view drives rule evaluation at commit time.
type TransactionView interface {
	ListProcedures() []Procedure
	ListRevisions(procedureID string) []Revision
	ListDataFields(procedureID string) []DataField
	FindProcedure(id string) (Procedure, bool)
	FindRevision(id string) (Revision, bool)
	FindDataField(id string) (DataField, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProcedure(id string) (Procedure, bool)
	ListProcedures() []Procedure
	GetRevision(id string) (Revision, bool)
	ListRevisions(procedureID string) []Revision
	GetDataField(id string) (DataField, bool)
	ListDataFields(procedureID string) []DataField
}
