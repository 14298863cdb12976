package core

import (
	"context"
	"fmt"

	"procedurecore/pkg/domain"
)

// NewRevisionSequenceRule returns the default rule guarding the revision
// history of every procedure: numbers are non-negative and unique within a
// procedure, and every revision except the latest is published.
func NewRevisionSequenceRule() domain.Rule {
	return revisionSequenceRule{}
}

type revisionSequenceRule struct{}

func (revisionSequenceRule) Name() string { return "revision_sequence" }

func (revisionSequenceRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, proc := range view.ListProcedures() {
		revisions := view.ListRevisions(proc.ID)
		latest, hasLatest := domain.LatestRevision(revisions)
		byNumber := make(map[int]string, len(revisions))
		for _, rev := range revisions {
			if rev.RevisionNumber < 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "revision_sequence",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("revision %s of %s has negative number %d", rev.ID, proc.ID, rev.RevisionNumber),
					Entity:   domain.EntityRevision,
					EntityID: rev.ID,
				})
			}
			if otherID, ok := byNumber[rev.RevisionNumber]; ok {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "revision_sequence",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("revision number %d of %s claimed by both %s and %s", rev.RevisionNumber, proc.ID, otherID, rev.ID),
					Entity:   domain.EntityRevision,
					EntityID: rev.ID,
				})
				continue
			}
			byNumber[rev.RevisionNumber] = rev.ID
			if hasLatest && rev.RevisionNumber != latest.RevisionNumber && !rev.Published {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "revision_sequence",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("revision %d of %s is an unpublished draft behind revision %d", rev.RevisionNumber, proc.ID, latest.RevisionNumber),
					Entity:   domain.EntityRevision,
					EntityID: rev.ID,
				})
			}
		}
	}
	return res, nil
}
