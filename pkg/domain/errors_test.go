package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTaxonomyMessages(t *testing.T) {
	cases := []struct {
		err      error
		contains []string
	}{
		{DuplicateTitleError{Title: "Weld Inspection"}, []string{"Weld Inspection", "already in use"}},
		{DuplicateRevisionNumberError{ProcedureID: "p1", RevisionNumber: 2}, []string{"2", "p1"}},
		{DuplicateFieldNameError{ProcedureID: "p1", Name: "Torque"}, []string{"Torque", "p1"}},
		{IllegalTransitionError{Guard: GuardCanPublish, Entity: EntityRevision, ID: "r1", Detail: "already published"}, []string{GuardCanPublish, "r1", "already published"}},
		{NotFoundError{Entity: EntityProcedure, ID: "p9"}, []string{"procedure", "p9", "not found"}},
		{MismatchedParentError{Entity: EntityDataField, ID: "f1", ProcedureID: "p1", RequestedID: "p2"}, []string{"f1", "p1", "p2"}},
	}
	for _, tc := range cases {
		msg := tc.err.Error()
		for _, want := range tc.contains {
			if !strings.Contains(msg, want) {
				t.Fatalf("error %T message %q missing %q", tc.err, msg, want)
			}
		}
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create procedure: %w", DuplicateTitleError{Title: "T"})
	var dup DuplicateTitleError
	if !errors.As(wrapped, &dup) || dup.Title != "T" {
		t.Fatalf("expected DuplicateTitleError to unwrap, got %v", wrapped)
	}

	wrapped = fmt.Errorf("publish: %w", IllegalTransitionError{Guard: GuardCanPublish})
	var illegal IllegalTransitionError
	if !errors.As(wrapped, &illegal) || illegal.Guard != GuardCanPublish {
		t.Fatalf("expected IllegalTransitionError to unwrap, got %v", wrapped)
	}
}

func TestDuplicateFieldNameAttribution(t *testing.T) {
	err := DuplicateFieldNameError{ProcedureID: "p1", Name: "Torque"}
	if err.Field() != "name" {
		t.Fatalf("duplicate field name should attribute to the name attribute, got %q", err.Field())
	}
}
