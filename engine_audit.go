package twostep

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventIdentifySuccess  = "identify_success"
	auditEventIdentifyFailure  = "identify_failure"
	auditEventChallengeSuccess = "challenge_success"
	auditEventChallengeFailure = "challenge_failure"
	auditEventChallengeReplay  = "challenge_replay"
	auditEventRegisterSuccess  = "register_success"
	auditEventRegisterFailure  = "register_failure"
	auditEventNotifyFailure    = "notify_failure"
)

// AuditErrorCode is the normalized error label attached to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidChallenge   AuditErrorCode = "challenge_invalid"
	auditErrChallengeReplay    AuditErrorCode = "challenge_replay"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrRegistration       AuditErrorCode = "registration_invalid"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidChallenge), errors.Is(err, ErrLoginRecordNotFound):
		return auditErrInvalidChallenge
	case errors.Is(err, ErrLoginRecordConsumed):
		return auditErrChallengeReplay
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrRegistrationInvalid):
		return auditErrRegistration
	case errors.Is(err, ErrLoginStoreUnavailable),
		errors.Is(err, ErrUserStoreUnavailable),
		errors.Is(err, ErrChallengeUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// emitAudit builds and dispatches one audit event. metadataBuilder is only
// invoked when auditing is enabled, so hot paths pay nothing for disabled
// audit.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}
