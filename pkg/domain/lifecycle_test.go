package domain

import "testing"

func rev(procedureID string, number int, published bool) Revision {
	return Revision{
		Base:           Base{ID: "rev-" + procedureID + "-" + string(rune('0'+number))},
		ProcedureID:    procedureID,
		RevisionNumber: number,
		Published:      published,
	}
}

func TestNextRevisionNumber(t *testing.T) {
	if got := NextRevisionNumber(nil); got != 0 {
		t.Fatalf("expected 0 for empty history, got %d", got)
	}
	revs := []Revision{rev("p", 0, true), rev("p", 3, true), rev("p", 1, false)}
	if got := NextRevisionNumber(revs); got != 4 {
		t.Fatalf("expected max+1=4, got %d", got)
	}
}

func TestLatestRevision(t *testing.T) {
	if _, ok := LatestRevision(nil); ok {
		t.Fatalf("expected no latest revision for empty history")
	}
	revs := []Revision{rev("p", 1, true), rev("p", 2, false), rev("p", 0, true)}
	latest, ok := LatestRevision(revs)
	if !ok || latest.RevisionNumber != 2 {
		t.Fatalf("expected revision 2 to be latest, got %+v ok=%v", latest, ok)
	}
}

func TestCanCreateRevision(t *testing.T) {
	if !CanCreateRevision(nil) {
		t.Fatalf("procedure without revisions should allow the first revision")
	}
	draftHead := []Revision{rev("p", 0, true), rev("p", 1, false)}
	if CanCreateRevision(draftHead) {
		t.Fatalf("unpublished latest revision must block a second draft")
	}
	publishedHead := []Revision{rev("p", 0, false), rev("p", 1, true)}
	if !CanCreateRevision(publishedHead) {
		t.Fatalf("published latest revision should allow a new revision")
	}
}

func TestCanPublish(t *testing.T) {
	if !CanPublish(rev("p", 0, false)) {
		t.Fatalf("draft revision should be publishable")
	}
	if CanPublish(rev("p", 0, true)) {
		t.Fatalf("published revision must not be publishable again")
	}
}

func TestCanReturnToDraftOnlyForLatest(t *testing.T) {
	siblings := []Revision{rev("p", 0, true), rev("p", 1, true)}
	if CanReturnToDraft(siblings[0], siblings) {
		t.Fatalf("non-latest revision must not return to draft")
	}
	if !CanReturnToDraft(siblings[1], siblings) {
		t.Fatalf("latest revision should return to draft")
	}
	if CanReturnToDraft(rev("p", 0, true), nil) {
		t.Fatalf("empty sibling set must not permit a transition")
	}
}

func TestCanDeleteRevision(t *testing.T) {
	only := []Revision{rev("p", 0, false)}
	if CanDeleteRevision(only[0], only) {
		t.Fatalf("last remaining revision must not be deletable, even as a draft")
	}
	siblings := []Revision{rev("p", 0, true), rev("p", 1, false)}
	if CanDeleteRevision(siblings[0], siblings) {
		t.Fatalf("published revision must not be deletable")
	}
	if !CanDeleteRevision(siblings[1], siblings) {
		t.Fatalf("unpublished non-last revision should be deletable")
	}
}
