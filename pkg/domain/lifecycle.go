package domain

// Lifecycle guard names reported inside IllegalTransitionError.
const (
	GuardCanCreateRevision = "can_create_revision"
	GuardCanPublish        = "can_publish"
	GuardCanReturnToDraft  = "can_return_to_draft"
	GuardCanDeleteRevision = "can_delete_revision"
)

// LatestRevision returns the revision with the highest number, if any.
func LatestRevision(revisions []Revision) (Revision, bool) {
	var latest Revision
	found := false
	for _, r := range revisions {
		if !found || r.RevisionNumber > latest.RevisionNumber {
			latest = r
			found = true
		}
	}
	return latest, found
}

// NextRevisionNumber returns the number the next revision of a procedure
// should take: zero when no revisions exist, otherwise one past the highest
// number in use. Callers must evaluate it against the same snapshot the
// write commits into.
func NextRevisionNumber(revisions []Revision) int {
	latest, ok := LatestRevision(revisions)
	if !ok {
		return 0
	}
	return latest.RevisionNumber + 1
}

// CanCreateRevision reports whether a new revision may be started. A
// procedure without revisions always qualifies; otherwise the latest
// revision must already be published, so that at most one draft exists.
func CanCreateRevision(revisions []Revision) bool {
	latest, ok := LatestRevision(revisions)
	if !ok {
		return true
	}
	return latest.Published
}

// CanPublish reports whether the revision may move from draft to published.
func CanPublish(rev Revision) bool {
	return !rev.Published
}

// CanReturnToDraft reports whether the revision may move back to draft.
// Only the numerically latest revision of its procedure may; earlier
// revisions are frozen history. siblings must include rev itself.
func CanReturnToDraft(rev Revision, siblings []Revision) bool {
	latest, ok := LatestRevision(siblings)
	if !ok {
		return false
	}
	return rev.RevisionNumber == latest.RevisionNumber
}

// CanDeleteRevision reports whether the revision may be removed: it must be
// a draft, and it must not be the procedure's last remaining revision.
// siblings must include rev itself.
func CanDeleteRevision(rev Revision, siblings []Revision) bool {
	if rev.Published {
		return false
	}
	return len(siblings) > 1
}
