// Package memory provides the in-memory implementation of the core
// persistence store. Durable backends embed it and snapshot its state.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"procedurecore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Procedure aliases domain.Procedure for in-memory persistence operations.
	Procedure = domain.Procedure
	// Revision aliases domain.Revision.
	Revision = domain.Revision
	// DataField aliases domain.DataField.
	DataField = domain.DataField
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	procedures map[string]Procedure
	revisions  map[string]Revision
	datafields map[string]DataField
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Procedures map[string]Procedure `json:"procedures"`
	Revisions  map[string]Revision  `json:"revisions"`
	DataFields map[string]DataField `json:"data_fields"`
}

func newMemoryState() memoryState {
	return memoryState{
		procedures: make(map[string]Procedure),
		revisions:  make(map[string]Revision),
		datafields: make(map[string]DataField),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.procedures {
		cloned.procedures[k] = v
	}
	for k, v := range s.revisions {
		cloned.revisions[k] = v
	}
	for k, v := range s.datafields {
		cloned.datafields[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Procedures: make(map[string]Procedure, len(state.procedures)),
		Revisions:  make(map[string]Revision, len(state.revisions)),
		DataFields: make(map[string]DataField, len(state.datafields)),
	}
	for k, v := range state.procedures {
		s.Procedures[k] = v
	}
	for k, v := range state.revisions {
		s.Revisions[k] = v
	}
	for k, v := range state.datafields {
		s.DataFields[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Procedures {
		state.procedures[k] = v
	}
	for k, v := range s.Revisions {
		state.revisions[k] = v
	}
	for k, v := range s.DataFields {
		state.datafields[k] = v
	}
	return state
}

// migrateSnapshot normalizes snapshots loaded from durable backends: nil maps
// become empty, orphaned children are dropped, and stored units are
// re-normalized in case the data predates the current field type rules.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Procedures == nil {
		snapshot.Procedures = map[string]Procedure{}
	}
	if snapshot.Revisions == nil {
		snapshot.Revisions = map[string]Revision{}
	}
	if snapshot.DataFields == nil {
		snapshot.DataFields = map[string]DataField{}
	}
	for id, rev := range snapshot.Revisions {
		if _, ok := snapshot.Procedures[rev.ProcedureID]; !ok {
			delete(snapshot.Revisions, id)
		}
	}
	for id, field := range snapshot.DataFields {
		if _, ok := snapshot.Procedures[field.ProcedureID]; !ok {
			delete(snapshot.DataFields, id)
			continue
		}
		field.NormalizeUnit()
		snapshot.DataFields[id] = field
	}
	return snapshot
}

// Store is an in-memory transactional store for the procedure schema.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// transaction is a mutation set applied to a cloned copy of the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of transactional state to
// rules and callers.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProcedures returns all procedures in the snapshot ordered by title.
func (v transactionView) ListProcedures() []Procedure {
	out := make([]Procedure, 0, len(v.state.procedures))
	for _, p := range v.state.procedures {
		out = append(out, p)
	}
	sortProcedures(out)
	return out
}

// ListRevisions returns the procedure's revisions ordered by revision number.
func (v transactionView) ListRevisions(procedureID string) []Revision {
	var out []Revision
	for _, r := range v.state.revisions {
		if r.ProcedureID == procedureID {
			out = append(out, r)
		}
	}
	sortRevisions(out)
	return out
}

// ListDataFields returns the procedure's data fields ordered by name.
func (v transactionView) ListDataFields(procedureID string) []DataField {
	var out []DataField
	for _, f := range v.state.datafields {
		if f.ProcedureID == procedureID {
			out = append(out, f)
		}
	}
	sortDataFields(out)
	return out
}

// FindProcedure retrieves a procedure by ID from the snapshot.
func (v transactionView) FindProcedure(id string) (Procedure, bool) {
	p, ok := v.state.procedures[id]
	return p, ok
}

// FindRevision retrieves a revision by ID from the snapshot.
func (v transactionView) FindRevision(id string) (Revision, bool) {
	r, ok := v.state.revisions[id]
	return r, ok
}

// FindDataField retrieves a data field by ID from the snapshot.
func (v transactionView) FindDataField(id string) (DataField, bool) {
	f, ok := v.state.datafields[id]
	return f, ok
}

func sortProcedures(items []Procedure) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title); at != bt {
			return at < bt
		}
		return a.ID < b.ID
	})
}

func sortRevisions(items []Revision) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].RevisionNumber < items[j].RevisionNumber
	})
}

func sortDataFields(items []DataField) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The write commits only when fn succeeds and no registered rule
// reports a blocking violation; otherwise no state is applied.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProcedure retrieves a procedure by ID within the transaction.
func (tx *transaction) FindProcedure(id string) (Procedure, bool) {
	p, ok := tx.state.procedures[id]
	return p, ok
}

// FindRevision retrieves a revision by ID within the transaction.
func (tx *transaction) FindRevision(id string) (Revision, bool) {
	r, ok := tx.state.revisions[id]
	return r, ok
}

// FindDataField retrieves a data field by ID within the transaction.
func (tx *transaction) FindDataField(id string) (DataField, bool) {
	f, ok := tx.state.datafields[id]
	return f, ok
}

// ListRevisions returns the procedure's revisions ordered by number.
func (tx *transaction) ListRevisions(procedureID string) []Revision {
	return newTransactionView(&tx.state).ListRevisions(procedureID)
}

// ListDataFields returns the procedure's data fields ordered by name.
func (tx *transaction) ListDataFields(procedureID string) []DataField {
	return newTransactionView(&tx.state).ListDataFields(procedureID)
}

func (tx *transaction) titleTaken(title string, excludeID string) bool {
	for _, p := range tx.state.procedures {
		if p.ID != excludeID && p.Title == title {
			return true
		}
	}
	return false
}

func (tx *transaction) revisionNumberTaken(procedureID string, number int, excludeID string) bool {
	for _, r := range tx.state.revisions {
		if r.ID != excludeID && r.ProcedureID == procedureID && r.RevisionNumber == number {
			return true
		}
	}
	return false
}

func (tx *transaction) fieldNameTaken(procedureID, name string, excludeID string) bool {
	for _, f := range tx.state.datafields {
		if f.ID != excludeID && f.ProcedureID == procedureID && f.Name == name {
			return true
		}
	}
	return false
}

// CreateProcedure stores a new procedure, enforcing global title uniqueness
// against the transaction snapshot.
func (tx *transaction) CreateProcedure(p Procedure) (Procedure, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.procedures[p.ID]; exists {
		return Procedure{}, fmt.Errorf("procedure %q already exists", p.ID)
	}
	if tx.titleTaken(p.Title, p.ID) {
		return Procedure{}, domain.DuplicateTitleError{Title: p.Title}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.procedures[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProcedure, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdateProcedure mutates a procedure using the provided mutator function.
func (tx *transaction) UpdateProcedure(id string, mutator func(*Procedure) error) (Procedure, error) {
	current, ok := tx.state.procedures[id]
	if !ok {
		return Procedure{}, domain.NotFoundError{Entity: domain.EntityProcedure, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Procedure{}, err
	}
	current.ID = id
	if tx.titleTaken(current.Title, id) {
		return Procedure{}, domain.DuplicateTitleError{Title: current.Title}
	}
	current.UpdatedAt = tx.now
	tx.state.procedures[id] = current
	tx.recordChange(Change{Entity: domain.EntityProcedure, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteProcedure removes a procedure and cascades to its revisions and data
// fields, all within the same transactional scope.
func (tx *transaction) DeleteProcedure(id string) error {
	current, ok := tx.state.procedures[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProcedure, ID: id}
	}
	for revID, rev := range tx.state.revisions {
		if rev.ProcedureID == id {
			delete(tx.state.revisions, revID)
			tx.recordChange(Change{Entity: domain.EntityRevision, Action: domain.ActionDelete, Before: rev})
		}
	}
	for fieldID, field := range tx.state.datafields {
		if field.ProcedureID == id {
			delete(tx.state.datafields, fieldID)
			tx.recordChange(Change{Entity: domain.EntityDataField, Action: domain.ActionDelete, Before: field})
		}
	}
	delete(tx.state.procedures, id)
	tx.recordChange(Change{Entity: domain.EntityProcedure, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateRevision stores a new revision, enforcing per-procedure revision
// number uniqueness.
func (tx *transaction) CreateRevision(r Revision) (Revision, error) {
	if _, ok := tx.state.procedures[r.ProcedureID]; !ok {
		return Revision{}, domain.NotFoundError{Entity: domain.EntityProcedure, ID: r.ProcedureID}
	}
	if r.RevisionNumber < 0 {
		return Revision{}, fmt.Errorf("revision number must be non-negative, got %d", r.RevisionNumber)
	}
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.revisions[r.ID]; exists {
		return Revision{}, fmt.Errorf("revision %q already exists", r.ID)
	}
	if tx.revisionNumberTaken(r.ProcedureID, r.RevisionNumber, r.ID) {
		return Revision{}, domain.DuplicateRevisionNumberError{ProcedureID: r.ProcedureID, RevisionNumber: r.RevisionNumber}
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.revisions[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRevision, Action: domain.ActionCreate, After: r})
	return r, nil
}

// UpdateRevision mutates a revision. The parent reference is pinned: a
// mutator cannot re-parent the record to another procedure.
func (tx *transaction) UpdateRevision(id string, mutator func(*Revision) error) (Revision, error) {
	current, ok := tx.state.revisions[id]
	if !ok {
		return Revision{}, domain.NotFoundError{Entity: domain.EntityRevision, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Revision{}, err
	}
	current.ID = id
	current.ProcedureID = before.ProcedureID
	if tx.revisionNumberTaken(current.ProcedureID, current.RevisionNumber, id) {
		return Revision{}, domain.DuplicateRevisionNumberError{ProcedureID: current.ProcedureID, RevisionNumber: current.RevisionNumber}
	}
	current.UpdatedAt = tx.now
	tx.state.revisions[id] = current
	tx.recordChange(Change{Entity: domain.EntityRevision, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteRevision removes a single revision. Lifecycle guards (publish state,
// last-remaining) are the caller's responsibility; the store only removes.
func (tx *transaction) DeleteRevision(id string) error {
	current, ok := tx.state.revisions[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRevision, ID: id}
	}
	delete(tx.state.revisions, id)
	tx.recordChange(Change{Entity: domain.EntityRevision, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateDataField stores a new data field, normalizing the unit and
// enforcing per-procedure name uniqueness.
func (tx *transaction) CreateDataField(f DataField) (DataField, error) {
	if _, ok := tx.state.procedures[f.ProcedureID]; !ok {
		return DataField{}, domain.NotFoundError{Entity: domain.EntityProcedure, ID: f.ProcedureID}
	}
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.datafields[f.ID]; exists {
		return DataField{}, fmt.Errorf("data field %q already exists", f.ID)
	}
	if tx.fieldNameTaken(f.ProcedureID, f.Name, f.ID) {
		return DataField{}, domain.DuplicateFieldNameError{ProcedureID: f.ProcedureID, Name: f.Name}
	}
	f.NormalizeUnit()
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.datafields[f.ID] = f
	tx.recordChange(Change{Entity: domain.EntityDataField, Action: domain.ActionCreate, After: f})
	return f, nil
}

// UpdateDataField mutates a data field. The parent reference is pinned and
// the unit re-normalized after the mutator runs.
func (tx *transaction) UpdateDataField(id string, mutator func(*DataField) error) (DataField, error) {
	current, ok := tx.state.datafields[id]
	if !ok {
		return DataField{}, domain.NotFoundError{Entity: domain.EntityDataField, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return DataField{}, err
	}
	current.ID = id
	current.ProcedureID = before.ProcedureID
	if tx.fieldNameTaken(current.ProcedureID, current.Name, id) {
		return DataField{}, domain.DuplicateFieldNameError{ProcedureID: current.ProcedureID, Name: current.Name}
	}
	current.NormalizeUnit()
	current.UpdatedAt = tx.now
	tx.state.datafields[id] = current
	tx.recordChange(Change{Entity: domain.EntityDataField, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteDataField removes a single data field.
func (tx *transaction) DeleteDataField(id string) error {
	current, ok := tx.state.datafields[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityDataField, ID: id}
	}
	delete(tx.state.datafields, id)
	tx.recordChange(Change{Entity: domain.EntityDataField, Action: domain.ActionDelete, Before: current})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetProcedure retrieves a procedure by ID from committed state.
func (s *Store) GetProcedure(id string) (Procedure, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.procedures[id]
	return p, ok
}

// ListProcedures returns all procedures from committed state ordered by title.
func (s *Store) ListProcedures() []Procedure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Procedure, 0, len(s.state.procedures))
	for _, p := range s.state.procedures {
		out = append(out, p)
	}
	sortProcedures(out)
	return out
}

// GetRevision retrieves a revision by ID from committed state.
func (s *Store) GetRevision(id string) (Revision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.revisions[id]
	return r, ok
}

// ListRevisions returns a procedure's revisions ordered by number.
func (s *Store) ListRevisions(procedureID string) []Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Revision
	for _, r := range s.state.revisions {
		if r.ProcedureID == procedureID {
			out = append(out, r)
		}
	}
	sortRevisions(out)
	return out
}

// GetDataField retrieves a data field by ID from committed state.
func (s *Store) GetDataField(id string) (DataField, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.datafields[id]
	return f, ok
}

// ListDataFields returns a procedure's data fields ordered by name.
func (s *Store) ListDataFields(procedureID string) []DataField {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DataField
	for _, f := range s.state.datafields {
		if f.ProcedureID == procedureID {
			out = append(out, f)
		}
	}
	sortDataFields(out)
	return out
}
