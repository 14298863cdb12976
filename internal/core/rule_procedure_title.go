package core

import (
	"context"
	"fmt"
	"strings"

	"procedurecore/pkg/domain"
)

// NewProcedureTitleRule returns the default rule blocking commits that would
// leave two procedures with the same title.
func NewProcedureTitleRule() domain.Rule {
	return procedureTitleRule{}
}

type procedureTitleRule struct{}

func (procedureTitleRule) Name() string { return "procedure_title_unique" }

func (procedureTitleRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	seen := make(map[string]string)
	res := domain.Result{}
	for _, proc := range view.ListProcedures() {
		title := proc.Title
		if strings.TrimSpace(title) == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "procedure_title_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("procedure %s has an empty title", proc.ID),
				Entity:   domain.EntityProcedure,
				EntityID: proc.ID,
			})
			continue
		}
		if otherID, ok := seen[title]; ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "procedure_title_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("title %q claimed by both %s and %s", title, otherID, proc.ID),
				Entity:   domain.EntityProcedure,
				EntityID: proc.ID,
			})
			continue
		}
		seen[title] = proc.ID
	}
	return res, nil
}
