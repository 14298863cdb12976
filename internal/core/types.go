package core

import "procedurecore/pkg/domain"

type (
	EntityType             = domain.EntityType
	FieldType              = domain.FieldType
	Severity               = domain.Severity
	Base                   = domain.Base
	Procedure              = domain.Procedure
	Revision               = domain.Revision
	DataField              = domain.DataField
	Change                 = domain.Change
	Action                 = domain.Action
	Violation              = domain.Violation
	Result                 = domain.Result
	Rule                   = domain.Rule
	RuleView               = domain.RuleView
	RulesEngine            = domain.RulesEngine
	RuleViolationError     = domain.RuleViolationError
	Transaction            = domain.Transaction
	TransactionView        = domain.TransactionView
	PersistentStore        = domain.PersistentStore
	NotFoundError          = domain.NotFoundError
	DuplicateTitleError    = domain.DuplicateTitleError
	IllegalTransitionError = domain.IllegalTransitionError
	MismatchedParentError  = domain.MismatchedParentError
)

const (
	EntityProcedure = domain.EntityProcedure
	EntityRevision  = domain.EntityRevision
	EntityDataField = domain.EntityDataField
)

const (
	FieldTypePassFail  = domain.FieldTypePassFail
	FieldTypeTrueFalse = domain.FieldTypeTrueFalse
	FieldTypeFloat     = domain.FieldTypeFloat
	FieldTypeInt       = domain.FieldTypeInt
	FieldTypeChar      = domain.FieldTypeChar
	FieldTypeText      = domain.FieldTypeText
	FieldTypeDate      = domain.FieldTypeDate
	FieldTypeTime      = domain.FieldTypeTime
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewProcedureTitleRule())
	engine.Register(NewRevisionSequenceRule())
	engine.Register(NewDataFieldIntegrityRule())
	return engine
}
