// Package core exposes the transactional procedure service: CRUD over
// procedures, their revision history, and their data fields, with lifecycle
// guards enforced ahead of the rules engine.
package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	blobcore "procedurecore/internal/blob/core"
	"procedurecore/internal/infra/persistence/memory"
	"procedurecore/pkg/domain"
)

const defaultAttachmentExpiry = 15 * time.Minute

// Service exposes higher-level transactional operations over a persistent store.
type Service struct {
	store            domain.PersistentStore
	logger           Logger
	metrics          MetricsRecorder
	tracer           Tracer
	clock            Clock
	attachments      blobcore.Store
	attachmentExpiry time.Duration
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:            store,
		logger:           noopLogger{},
		metrics:          noopMetricsRecorder{},
		tracer:           noopTracer{},
		clock:            ClockFunc(time.Now),
		attachmentExpiry: defaultAttachmentExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// instrument wraps an operation with logging, metrics, and tracing.
func (s *Service) instrument(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "duration_ms", float64(duration)/float64(time.Millisecond), "error", err.Error())
	} else {
		s.logger.Debug("operation completed", "operation", operation, "duration_ms", float64(duration)/float64(time.Millisecond))
	}
	return err
}

// ListProcedures returns all procedures ordered by title.
func (s *Service) ListProcedures(ctx context.Context) ([]Procedure, error) {
	var out []Procedure
	err := s.instrument(ctx, "list_procedures", func(context.Context) error {
		out = s.store.ListProcedures()
		return nil
	})
	return out, err
}

// GetProcedure fetches one procedure by id.
func (s *Service) GetProcedure(ctx context.Context, id string) (Procedure, error) {
	var out Procedure
	err := s.instrument(ctx, "get_procedure", func(context.Context) error {
		proc, ok := s.store.GetProcedure(id)
		if !ok {
			return NotFoundError{Entity: EntityProcedure, ID: id}
		}
		out = proc
		return nil
	})
	return out, err
}

// CreateProcedure persists a new procedure and seeds its revision history
// with an initial draft, so that every procedure always carries at least one
// revision.
func (s *Service) CreateProcedure(ctx context.Context, title string) (Procedure, Result, error) {
	var created Procedure
	var res Result
	err := s.instrument(ctx, "create_procedure", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			created, txErr = tx.CreateProcedure(domain.Procedure{Title: title})
			if txErr != nil {
				return txErr
			}
			return ensureRevisionPresent(tx, created.ID)
		})
		return err
	})
	return created, res, err
}

// RenameProcedure changes a procedure title, keeping titles unique.
func (s *Service) RenameProcedure(ctx context.Context, id, title string) (Procedure, Result, error) {
	var updated Procedure
	var res Result
	err := s.instrument(ctx, "rename_procedure", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateProcedure(id, func(p *Procedure) error {
				p.Title = title
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteProcedure removes a procedure along with its revisions and data fields.
func (s *Service) DeleteProcedure(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_procedure", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteProcedure(id)
		})
		return err
	})
	return res, err
}

// EnsureRevisionPresent creates an initial draft revision for a procedure
// that has none. It is a no-op when revisions already exist.
func (s *Service) EnsureRevisionPresent(ctx context.Context, procedureID string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "ensure_revision_present", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindProcedure(procedureID); !ok {
				return NotFoundError{Entity: EntityProcedure, ID: procedureID}
			}
			return ensureRevisionPresent(tx, procedureID)
		})
		return err
	})
	return res, err
}

func ensureRevisionPresent(tx domain.Transaction, procedureID string) error {
	if len(tx.ListRevisions(procedureID)) > 0 {
		return nil
	}
	_, err := tx.CreateRevision(domain.Revision{ProcedureID: procedureID, RevisionNumber: 0})
	return err
}

// CreateRevision starts a new draft revision for a procedure. The latest
// revision must be published first; its number is one past the highest in use.
func (s *Service) CreateRevision(ctx context.Context, procedureID string) (Revision, Result, error) {
	var created Revision
	var res Result
	err := s.instrument(ctx, "create_revision", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindProcedure(procedureID); !ok {
				return NotFoundError{Entity: EntityProcedure, ID: procedureID}
			}
			siblings := tx.ListRevisions(procedureID)
			if !domain.CanCreateRevision(siblings) {
				latest, _ := domain.LatestRevision(siblings)
				return IllegalTransitionError{
					Guard:  domain.GuardCanCreateRevision,
					Entity: EntityProcedure,
					ID:     procedureID,
					Detail: fmt.Sprintf("revision %d is still a draft", latest.RevisionNumber),
				}
			}
			var txErr error
			created, txErr = tx.CreateRevision(domain.Revision{
				ProcedureID:    procedureID,
				RevisionNumber: domain.NextRevisionNumber(siblings),
			})
			return txErr
		})
		return err
	})
	return created, res, err
}

// PublishRevision moves a draft revision to published.
func (s *Service) PublishRevision(ctx context.Context, revisionID string) (Revision, Result, error) {
	var updated Revision
	var res Result
	err := s.instrument(ctx, "publish_revision", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			rev, ok := tx.FindRevision(revisionID)
			if !ok {
				return NotFoundError{Entity: EntityRevision, ID: revisionID}
			}
			if !domain.CanPublish(rev) {
				return IllegalTransitionError{
					Guard:  domain.GuardCanPublish,
					Entity: EntityRevision,
					ID:     revisionID,
					Detail: fmt.Sprintf("revision %d is already published", rev.RevisionNumber),
				}
			}
			var txErr error
			updated, txErr = tx.UpdateRevision(revisionID, func(r *Revision) error {
				r.Published = true
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// ReturnRevisionToDraft moves the latest revision of a procedure back to
// draft. Earlier revisions are frozen history and stay published.
func (s *Service) ReturnRevisionToDraft(ctx context.Context, revisionID string) (Revision, Result, error) {
	var updated Revision
	var res Result
	err := s.instrument(ctx, "return_revision_to_draft", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			rev, ok := tx.FindRevision(revisionID)
			if !ok {
				return NotFoundError{Entity: EntityRevision, ID: revisionID}
			}
			siblings := tx.ListRevisions(rev.ProcedureID)
			if !domain.CanReturnToDraft(rev, siblings) {
				latest, _ := domain.LatestRevision(siblings)
				return IllegalTransitionError{
					Guard:  domain.GuardCanReturnToDraft,
					Entity: EntityRevision,
					ID:     revisionID,
					Detail: fmt.Sprintf("revision %d is superseded by revision %d", rev.RevisionNumber, latest.RevisionNumber),
				}
			}
			var txErr error
			updated, txErr = tx.UpdateRevision(revisionID, func(r *Revision) error {
				r.Published = false
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteRevision removes a draft revision, refusing to remove published
// revisions or the last remaining revision of a procedure.
func (s *Service) DeleteRevision(ctx context.Context, revisionID string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_revision", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			rev, ok := tx.FindRevision(revisionID)
			if !ok {
				return NotFoundError{Entity: EntityRevision, ID: revisionID}
			}
			siblings := tx.ListRevisions(rev.ProcedureID)
			if !domain.CanDeleteRevision(rev, siblings) {
				detail := "published revisions cannot be deleted"
				if !rev.Published {
					detail = "the last revision of a procedure cannot be deleted"
				}
				return IllegalTransitionError{
					Guard:  domain.GuardCanDeleteRevision,
					Entity: EntityRevision,
					ID:     revisionID,
					Detail: detail,
				}
			}
			return tx.DeleteRevision(revisionID)
		})
		return err
	})
	return res, err
}

// GetRevision fetches one revision by id.
func (s *Service) GetRevision(ctx context.Context, id string) (Revision, error) {
	var out Revision
	err := s.instrument(ctx, "get_revision", func(context.Context) error {
		rev, ok := s.store.GetRevision(id)
		if !ok {
			return NotFoundError{Entity: EntityRevision, ID: id}
		}
		out = rev
		return nil
	})
	return out, err
}

// ListRevisions returns a procedure's revisions ordered by number.
func (s *Service) ListRevisions(ctx context.Context, procedureID string) ([]Revision, error) {
	var out []Revision
	err := s.instrument(ctx, "list_revisions", func(context.Context) error {
		out = s.store.ListRevisions(procedureID)
		return nil
	})
	return out, err
}

// SetReferenceDocument records the reference document title and URL on a
// draft revision. Published revisions are immutable.
func (s *Service) SetReferenceDocument(ctx context.Context, revisionID, title, url string) (Revision, Result, error) {
	var updated Revision
	var res Result
	err := s.instrument(ctx, "set_reference_document", func(ctx context.Context) error {
		var err error
		res, err = s.updateDraftRevision(ctx, revisionID, func(r *Revision) error {
			r.ReferenceDocumentTitle = title
			r.ReferenceDocumentURL = url
			return nil
		}, &updated)
		return err
	})
	return updated, res, err
}

// AttachReferenceDocument uploads a reference document to the configured
// attachment store and records it on a draft revision. The recorded URL is
// presigned when the backend supports it, otherwise the backend's stable URL.
func (s *Service) AttachReferenceDocument(ctx context.Context, revisionID, title, filename string, payload io.Reader) (Revision, Result, error) {
	var updated Revision
	var res Result
	err := s.instrument(ctx, "attach_reference_document", func(ctx context.Context) error {
		if s.attachments == nil {
			return fmt.Errorf("no attachment store configured")
		}
		// A rejected write must not touch existing blobs, so refuse up front
		// before replacing the stored payload. The transaction re-checks the
		// same conditions when recording the URL.
		rev, ok := s.store.GetRevision(revisionID)
		if !ok {
			return NotFoundError{Entity: EntityRevision, ID: revisionID}
		}
		if rev.Published {
			return IllegalTransitionError{
				Guard:  domain.GuardCanPublish,
				Entity: EntityRevision,
				ID:     revisionID,
				Detail: fmt.Sprintf("revision %d is published and immutable", rev.RevisionNumber),
			}
		}
		key := path.Join("revisions", revisionID, filename)
		// backends are create-only per key, so drop any earlier upload first
		if _, err := s.attachments.Delete(ctx, key); err != nil {
			return fmt.Errorf("replace attachment: %w", err)
		}
		info, err := s.attachments.Put(ctx, key, payload, blobcore.PutOptions{
			Metadata: map[string]string{"revision_id": revisionID, "title": title},
		})
		if err != nil {
			return fmt.Errorf("store attachment: %w", err)
		}
		url, err := s.attachments.PresignURL(ctx, key, blobcore.SignedURLOptions{Method: "GET", Expiry: s.attachmentExpiry})
		if err != nil {
			url = info.URL
		}
		if url == "" {
			url = fmt.Sprintf("blob://%s/%s", s.attachments.Driver(), key)
		}
		res, err = s.updateDraftRevision(ctx, revisionID, func(r *Revision) error {
			r.ReferenceDocumentTitle = title
			r.ReferenceDocumentURL = url
			return nil
		}, &updated)
		if err != nil {
			// keep the store consistent with the rejected write
			if _, delErr := s.attachments.Delete(ctx, key); delErr != nil {
				s.logger.Error("orphaned attachment cleanup failed", "key", key, "error", delErr.Error())
			}
		}
		return err
	})
	return updated, res, err
}

func (s *Service) updateDraftRevision(ctx context.Context, revisionID string, mutator func(*Revision) error, out *Revision) (Result, error) {
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rev, ok := tx.FindRevision(revisionID)
		if !ok {
			return NotFoundError{Entity: EntityRevision, ID: revisionID}
		}
		if rev.Published {
			return IllegalTransitionError{
				Guard:  domain.GuardCanPublish,
				Entity: EntityRevision,
				ID:     revisionID,
				Detail: fmt.Sprintf("revision %d is published and immutable", rev.RevisionNumber),
			}
		}
		updated, err := tx.UpdateRevision(revisionID, mutator)
		if err != nil {
			return err
		}
		*out = updated
		return nil
	})
}

// CreateDataField adds a typed data field to a procedure. Units on
// non-numeric field types are discarded.
func (s *Service) CreateDataField(ctx context.Context, procedureID string, field DataField) (DataField, Result, error) {
	var created DataField
	var res Result
	err := s.instrument(ctx, "create_data_field", func(ctx context.Context) error {
		if !field.FieldType.Valid() {
			return fmt.Errorf("unknown field type %q", field.FieldType)
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			field.ProcedureID = procedureID
			var txErr error
			created, txErr = tx.CreateDataField(field)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateDataField mutates a data field after checking it belongs to the
// procedure named by the request.
func (s *Service) UpdateDataField(ctx context.Context, procedureID, fieldID string, mutator func(*DataField) error) (DataField, Result, error) {
	var updated DataField
	var res Result
	err := s.instrument(ctx, "update_data_field", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if err := checkFieldParent(tx, procedureID, fieldID); err != nil {
				return err
			}
			var txErr error
			updated, txErr = tx.UpdateDataField(fieldID, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteDataField removes a data field after checking it belongs to the
// procedure named by the request.
func (s *Service) DeleteDataField(ctx context.Context, procedureID, fieldID string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_data_field", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if err := checkFieldParent(tx, procedureID, fieldID); err != nil {
				return err
			}
			return tx.DeleteDataField(fieldID)
		})
		return err
	})
	return res, err
}

func checkFieldParent(tx domain.Transaction, procedureID, fieldID string) error {
	field, ok := tx.FindDataField(fieldID)
	if !ok {
		return NotFoundError{Entity: EntityDataField, ID: fieldID}
	}
	if field.ProcedureID != procedureID {
		return MismatchedParentError{
			Entity:      EntityDataField,
			ID:          fieldID,
			ProcedureID: field.ProcedureID,
			RequestedID: procedureID,
		}
	}
	return nil
}

// GetDataField fetches one data field by id.
func (s *Service) GetDataField(ctx context.Context, id string) (DataField, error) {
	var out DataField
	err := s.instrument(ctx, "get_data_field", func(context.Context) error {
		field, ok := s.store.GetDataField(id)
		if !ok {
			return NotFoundError{Entity: EntityDataField, ID: id}
		}
		out = field
		return nil
	})
	return out, err
}

// ListDataFields returns a procedure's data fields ordered by name.
func (s *Service) ListDataFields(ctx context.Context, procedureID string) ([]DataField, error) {
	var out []DataField
	err := s.instrument(ctx, "list_data_fields", func(context.Context) error {
		out = s.store.ListDataFields(procedureID)
		return nil
	})
	return out, err
}
