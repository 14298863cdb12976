package core

import (
	"time"

	blobcore "procedurecore/internal/blob/core"
)

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger installs a logger for service events. A nil logger is ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder. A nil recorder is ignored.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer. A nil tracer is ignored.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for operation timing.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAttachmentStore installs a blob store for reference document uploads.
func WithAttachmentStore(store blobcore.Store) ServiceOption {
	return func(s *Service) {
		s.attachments = store
	}
}

// WithAttachmentURLExpiry overrides how long presigned attachment URLs stay
// valid on backends that support signing.
func WithAttachmentURLExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		if expiry > 0 {
			s.attachmentExpiry = expiry
		}
	}
}
