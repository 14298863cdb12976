package core

import (
	"context"
	"testing"

	"procedurecore/pkg/domain"
)

type fakeView struct {
	procedures []domain.Procedure
	revisions  map[string][]domain.Revision
	fields     map[string][]domain.DataField
}

func (v fakeView) ListProcedures() []domain.Procedure { return v.procedures }
func (v fakeView) ListRevisions(procedureID string) []domain.Revision {
	return v.revisions[procedureID]
}
func (v fakeView) ListDataFields(procedureID string) []domain.DataField {
	return v.fields[procedureID]
}

func violationsOf(t *testing.T, rule domain.Rule, view domain.RuleView) []domain.Violation {
	t.Helper()
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("%s: %v", rule.Name(), err)
	}
	return res.Violations
}

func TestProcedureTitleRule(t *testing.T) {
	rule := NewProcedureTitleRule()

	clean := fakeView{procedures: []domain.Procedure{
		{Base: domain.Base{ID: "p1"}, Title: "A"},
		{Base: domain.Base{ID: "p2"}, Title: "B"},
	}}
	if v := violationsOf(t, rule, clean); len(v) != 0 {
		t.Fatalf("unexpected violations: %+v", v)
	}

	dupes := fakeView{procedures: []domain.Procedure{
		{Base: domain.Base{ID: "p1"}, Title: "A"},
		{Base: domain.Base{ID: "p2"}, Title: "A"},
		{Base: domain.Base{ID: "p3"}, Title: "  "},
	}}
	v := violationsOf(t, rule, dupes)
	if len(v) != 2 {
		t.Fatalf("expected duplicate and empty title violations, got %+v", v)
	}
	for _, violation := range v {
		if violation.Severity != domain.SeverityBlock {
			t.Fatalf("expected blocking severity: %+v", violation)
		}
	}
}

func TestRevisionSequenceRule(t *testing.T) {
	rule := NewRevisionSequenceRule()
	proc := domain.Procedure{Base: domain.Base{ID: "p1"}, Title: "A"}

	clean := fakeView{
		procedures: []domain.Procedure{proc},
		revisions: map[string][]domain.Revision{"p1": {
			{Base: domain.Base{ID: "r0"}, ProcedureID: "p1", RevisionNumber: 0, Published: true},
			{Base: domain.Base{ID: "r1"}, ProcedureID: "p1", RevisionNumber: 1},
		}},
	}
	if v := violationsOf(t, rule, clean); len(v) != 0 {
		t.Fatalf("unexpected violations: %+v", v)
	}

	broken := fakeView{
		procedures: []domain.Procedure{proc},
		revisions: map[string][]domain.Revision{"p1": {
			{Base: domain.Base{ID: "r0"}, ProcedureID: "p1", RevisionNumber: 0},
			{Base: domain.Base{ID: "r1"}, ProcedureID: "p1", RevisionNumber: 0, Published: true},
			{Base: domain.Base{ID: "r2"}, ProcedureID: "p1", RevisionNumber: -1},
		}},
	}
	v := violationsOf(t, rule, broken)
	if len(v) < 3 {
		t.Fatalf("expected duplicate, negative, and stale draft violations, got %+v", v)
	}
}

func TestDataFieldIntegrityRule(t *testing.T) {
	rule := NewDataFieldIntegrityRule()
	proc := domain.Procedure{Base: domain.Base{ID: "p1"}, Title: "A"}

	view := fakeView{
		procedures: []domain.Procedure{proc},
		fields: map[string][]domain.DataField{"p1": {
			{Base: domain.Base{ID: "f1"}, ProcedureID: "p1", Name: "Torque", FieldType: domain.FieldTypeFloat, Unit: "Nm"},
			{Base: domain.Base{ID: "f2"}, ProcedureID: "p1", Name: "Torque", FieldType: domain.FieldTypeInt},
			{Base: domain.Base{ID: "f3"}, ProcedureID: "p1", Name: "Odd", FieldType: "decimal"},
			{Base: domain.Base{ID: "f4"}, ProcedureID: "p1", Name: "Notes", FieldType: domain.FieldTypeText, Unit: "pages"},
		}},
	}
	violations := violationsOf(t, rule, view)

	var dup, unknown, unit bool
	for _, v := range violations {
		switch {
		case v.EntityID == "f2" && v.Severity == domain.SeverityBlock:
			dup = true
		case v.EntityID == "f3" && v.Severity == domain.SeverityBlock:
			unknown = true
		case v.EntityID == "f4" && v.Severity == domain.SeverityWarn:
			unit = true
		}
	}
	if !dup || !unknown || !unit {
		t.Fatalf("missing expected violations: %+v", violations)
	}
}

func TestDefaultRulesEngineBlocksInvalidImports(t *testing.T) {
	engine := NewDefaultRulesEngine()
	view := fakeView{procedures: []domain.Procedure{
		{Base: domain.Base{ID: "p1"}, Title: "Same"},
		{Base: domain.Base{ID: "p2"}, Title: "Same"},
	}}
	res, err := engine.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result, got %+v", res)
	}
}
