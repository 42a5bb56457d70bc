package adminAuth

import (
	"context"
	"errors"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/adminAuth/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one audited action.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel; handy in tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink writes events through a zerolog logger.
type LoggerSink = internalaudit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginSuperseded          = "login_superseded"
	auditEventLoginThrottled           = "login_throttled"
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterFailure          = "register_failure"
	auditEventLogout                   = "logout"
	auditEventRoleChange               = "role_change"
	auditEventRoleChangeDenied         = "role_change_denied"
	auditEventProfileUpdate            = "profile_update"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventBootstrapAdminCreated    = "bootstrap_admin_created"
)

// AuditErrorCode is the stable error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrDuplicateEmail    AuditErrorCode = "duplicate_email"
	auditErrUnknownEmail      AuditErrorCode = "unknown_email"
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrPermissionDenied  AuditErrorCode = "permission_denied"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrInvalidRole       AuditErrorCode = "invalid_role"
	auditErrInvalidInput      AuditErrorCode = "invalid_input"
	auditErrSuperseded        AuditErrorCode = "superseded"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicateEmail
	case errors.Is(err, ErrUnknownEmail):
		return auditErrUnknownEmail
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidRole):
		return auditErrInvalidRole
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrSuperseded):
		return auditErrSuperseded
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrRateLimited
	case errors.Is(err, ErrConnectivity):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actorID string,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	s.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ActorID:   actorID,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(auditErrorCode(err)),
		Metadata:  metadata,
	})
}
