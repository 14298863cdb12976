package domain

import "fmt"

// DuplicateTitleError is returned when a procedure title is already taken.
type DuplicateTitleError struct {
	Title string
}

func (e DuplicateTitleError) Error() string {
	return fmt.Sprintf("procedure title %q already in use", e.Title)
}

// DuplicateRevisionNumberError is returned when a revision number is already
// used within the same procedure.
type DuplicateRevisionNumberError struct {
	ProcedureID    string
	RevisionNumber int
}

func (e DuplicateRevisionNumberError) Error() string {
	return fmt.Sprintf("revision number %d already used within procedure %s", e.RevisionNumber, e.ProcedureID)
}

// DuplicateFieldNameError is returned when a data field name is already used
// within the same procedure. Name identifies the offending form field so a
// presentation layer can attribute the failure.
type DuplicateFieldNameError struct {
	ProcedureID string
	Name        string
}

func (e DuplicateFieldNameError) Error() string {
	return fmt.Sprintf("field name %q already used within procedure %s", e.Name, e.ProcedureID)
}

// Field names the attribute the duplicate applies to, for form display.
func (e DuplicateFieldNameError) Field() string { return "name" }

// IllegalTransitionError is returned when a lifecycle guard rejects an
// operation. Guard carries the predicate that failed and Detail the state
// that made it fail, for diagnostics.
type IllegalTransitionError struct {
	Guard  string
	Entity EntityType
	ID     string
	Detail string
}

func (e IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s %s: %s rejected: %s", e.Entity, e.ID, e.Guard, e.Detail)
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// MismatchedParentError is returned when a child record's procedure reference
// does not match the procedure indicated by the request context. It signals a
// malformed request rather than a missing record.
type MismatchedParentError struct {
	Entity      EntityType
	ID          string
	ProcedureID string
	RequestedID string
}

func (e MismatchedParentError) Error() string {
	return fmt.Sprintf("%s %s belongs to procedure %s, not %s", e.Entity, e.ID, e.ProcedureID, e.RequestedID)
}
