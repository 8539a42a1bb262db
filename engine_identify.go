package twostep

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcastano/twostep/internal"
	"github.com/jmcastano/twostep/secret"
)

// Identify runs Step A of the protocol: it verifies the submitted email and
// secret, creates a pending login record with a fresh challenge code, and
// hands the code to the notifier. On success it returns the matched user
// with the secret digest cleared; the token is not issued until Step B.
//
// Unknown email and wrong secret both return ErrInvalidCredentials. A
// notification failure does not roll back the pending record.
func (e *Engine) Identify(ctx context.Context, creds Credentials) (*User, error) {
	if e == nil || e.userStore == nil || e.loginStore == nil {
		return nil, ErrEngineNotReady
	}
	if creds.Email == "" || creds.Secret == "" {
		e.metricInc(MetricIdentifyFailure)
		e.emitAudit(ctx, auditEventIdentifyFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_credentials"}
		})
		return nil, ErrInvalidCredentials
	}

	user, err := e.userStore.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricIdentifyFailure)
			e.emitAudit(ctx, auditEventIdentifyFailure, false, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "user_not_found"}
			})
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventIdentifyFailure, false, "", ErrUserStoreUnavailable, nil)
		return nil, ErrUserStoreUnavailable
	}

	if !secret.Verify(creds.Secret, user.SecretHash) {
		e.metricInc(MetricIdentifyFailure)
		e.emitAudit(ctx, auditEventIdentifyFailure, false, user.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "secret_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}
	creds.Secret = ""

	code, err := internal.NumericCode(e.config.Challenge.CodeLength)
	if err != nil {
		e.metricInc(MetricIdentifyFailure)
		e.emitAudit(ctx, auditEventIdentifyFailure, false, user.ID, ErrChallengeUnavailable, nil)
		return nil, ErrChallengeUnavailable
	}

	record, err := e.loginStore.CreatePending(ctx, user.ID, code)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventIdentifyFailure, false, user.ID, err, nil)
		return nil, mapLoginStoreError(err)
	}

	e.notifyChallenge(ctx, user, record, code)

	e.metricInc(MetricIdentifySuccess)
	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventIdentifySuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"record_id": record.ID}
	})
	return user.Redacted(), nil
}

// notifyChallenge delivers the challenge code out-of-band. Best-effort: the
// pending record stands whether or not delivery works.
func (e *Engine) notifyChallenge(ctx context.Context, user *User, record *LoginRecord, code string) {
	if e.notifier == nil {
		return
	}
	contact := user.Phone
	if contact == "" {
		contact = user.Email
	}
	if err := e.notifier.Send(ctx, contact, "Your verification code is "+code); err != nil {
		e.warn("twostep: challenge notification failed")
		e.metricInc(MetricNotifyFailure)
		e.emitAudit(ctx, auditEventNotifyFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"record_id": record.ID}
		})
	}
}

func mapLoginStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLoginRecordNotFound),
		errors.Is(err, ErrLoginRecordConsumed),
		errors.Is(err, ErrLoginStoreUnavailable):
		return err
	default:
		// Custom LoginStore implementations may return anything; fold
		// unknown failures into the backend sentinel.
		return fmt.Errorf("%w: %v", ErrLoginStoreUnavailable, err)
	}
}
