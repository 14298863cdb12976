package domain

import "testing"

func TestFieldTypeValid(t *testing.T) {
	for _, ft := range FieldTypes() {
		if !ft.Valid() {
			t.Fatalf("canonical field type %q reported invalid", ft)
		}
	}
	if FieldType("workobject").Valid() {
		t.Fatalf("unknown field type reported valid")
	}
	if FieldType("").Valid() {
		t.Fatalf("empty field type reported valid")
	}
}

func TestFieldTypeNumeric(t *testing.T) {
	numeric := map[FieldType]bool{FieldTypeFloat: true, FieldTypeInt: true}
	for _, ft := range FieldTypes() {
		if got := ft.Numeric(); got != numeric[ft] {
			t.Fatalf("field type %q numeric=%v, expected %v", ft, got, numeric[ft])
		}
	}
}

func TestNormalizeUnitClearsNonNumeric(t *testing.T) {
	field := DataField{Name: "Visual Check", FieldType: FieldTypePassFail, Unit: "Nm"}
	field.NormalizeUnit()
	if field.Unit != "" {
		t.Fatalf("expected unit cleared for pass/fail field, got %q", field.Unit)
	}

	field = DataField{Name: "Torque", FieldType: FieldTypeFloat, Unit: "Nm"}
	field.NormalizeUnit()
	if field.Unit != "Nm" {
		t.Fatalf("expected unit preserved for float field, got %q", field.Unit)
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var combined Result
	combined.Merge(Result{})
	if len(combined.Violations) != 0 {
		t.Fatalf("merging an empty result should not add violations")
	}
	combined.Merge(Result{Violations: []Violation{{Rule: "a", Severity: SeverityWarn}}})
	if combined.HasBlocking() {
		t.Fatalf("warn-only result should not block")
	}
	combined.Merge(Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}})
	if !combined.HasBlocking() {
		t.Fatalf("blocking violation should be reported")
	}
	if len(combined.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(combined.Violations))
	}
}
