package core

import (
	"context"
	"fmt"

	"procedurecore/pkg/domain"
)

// NewDataFieldIntegrityRule returns the default rule checking data field
// consistency: names are unique within a procedure, field types are known,
// and units only appear on numeric fields.
func NewDataFieldIntegrityRule() domain.Rule {
	return dataFieldIntegrityRule{}
}

type dataFieldIntegrityRule struct{}

func (dataFieldIntegrityRule) Name() string { return "data_field_integrity" }

func (dataFieldIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, proc := range view.ListProcedures() {
		byName := make(map[string]string)
		for _, field := range view.ListDataFields(proc.ID) {
			if otherID, ok := byName[field.Name]; ok {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "data_field_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("field name %q of %s claimed by both %s and %s", field.Name, proc.ID, otherID, field.ID),
					Entity:   domain.EntityDataField,
					EntityID: field.ID,
				})
			} else {
				byName[field.Name] = field.ID
			}
			if !field.FieldType.Valid() {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "data_field_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("field %s has unknown type %q", field.ID, field.FieldType),
					Entity:   domain.EntityDataField,
					EntityID: field.ID,
				})
			}
			if field.Unit != "" && !field.FieldType.Numeric() {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "data_field_integrity",
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("field %s carries unit %q on non-numeric type %s", field.ID, field.Unit, field.FieldType),
					Entity:   domain.EntityDataField,
					EntityID: field.ID,
				})
			}
		}
	}
	return res, nil
}
