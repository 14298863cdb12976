// Package domain defines the persistent entities, lifecycle predicates, and
// rule evaluation primitives used by procedurecore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProcedure identifies a procedure template record.
	EntityProcedure EntityType = "procedure"
	// EntityRevision identifies a procedure revision record.
	EntityRevision EntityType = "revision"
	// EntityDataField identifies a data field definition record.
	EntityDataField EntityType = "data_field"
)

// FieldType enumerates the kinds of data a field can capture when a
// procedure is executed.
type FieldType string

// Canonical field types selectable for a data field definition.
const (
	FieldTypePassFail  FieldType = "passfail"
	FieldTypeTrueFalse FieldType = "truefalse"
	FieldTypeFloat     FieldType = "float"
	FieldTypeInt       FieldType = "int"
	FieldTypeChar      FieldType = "char"
	FieldTypeText      FieldType = "text"
	FieldTypeDate      FieldType = "date"
	FieldTypeTime      FieldType = "time"
)

// FieldTypes lists every valid field type in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypePassFail,
		FieldTypeTrueFalse,
		FieldTypeFloat,
		FieldTypeInt,
		FieldTypeChar,
		FieldTypeText,
		FieldTypeDate,
		FieldTypeTime,
	}
}

// Valid reports whether the field type is one of the canonical values.
func (f FieldType) Valid() bool {
	switch f {
	case FieldTypePassFail, FieldTypeTrueFalse, FieldTypeFloat, FieldTypeInt,
		FieldTypeChar, FieldTypeText, FieldTypeDate, FieldTypeTime:
		return true
	}
	return false
}

// Numeric reports whether values of this type carry a unit of measure.
func (f FieldType) Numeric() bool {
	return f == FieldTypeFloat || f == FieldTypeInt
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Procedure is a named template for a real-world process. Implementations of
// the template live in revisions; the data captured per execution is
// described by data fields. Both child collections are lifetime-bound to the
// procedure.
type Procedure struct {
	Base
	Title string `json:"title"`
}

// Revision is one versioned, independently publishable implementation of a
// procedure. Revision numbers are assigned sequentially per procedure
// starting at zero; an unpublished revision is a draft.
type Revision struct {
	Base
	ProcedureID            string `json:"procedure_id"`
	RevisionNumber         int    `json:"revision_number"`
	ReferenceDocumentTitle string `json:"reference_document_title,omitempty"`
	ReferenceDocumentURL   string `json:"reference_document_url,omitempty"`
	Published              bool   `json:"is_published"`
}

// DataField describes one typed slot of data to capture when the procedure
// is executed. Names are unique among sibling fields of the same procedure.
type DataField struct {
	Base
	ProcedureID string    `json:"procedure_id"`
	Name        string    `json:"name"`
	FieldType   FieldType `json:"field_type"`
	Unit        string    `json:"unit,omitempty"`
}

// NormalizeUnit clears the unit unless the field type is numeric. The
// normalization is applied before every write, not merely advised.
func (d *DataField) NormalizeUnit() {
	if !d.FieldType.Numeric() {
		d.Unit = ""
	}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
