package twostep

import (
	"context"

	"github.com/jmcastano/twostep/secret"
)

// Register creates a user with a generated numeric secret. Only the digest
// is stored; the plaintext is delivered out-of-band through the notifier
// and then discarded. The returned user has the digest cleared.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if e == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}
	if input.Email == "" || input.FirstName == "" || input.LastName == "" {
		e.metricInc(MetricIdentifyFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrRegistrationInvalid, nil)
		return nil, ErrRegistrationInvalid
	}

	plaintext, err := secret.Generate(e.config.Secret.GeneratedLength)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrChallengeUnavailable, nil)
		return nil, ErrChallengeUnavailable
	}

	user := &User{
		FirstName:      input.FirstName,
		MiddleName:     input.MiddleName,
		LastName:       input.LastName,
		SecondLastName: input.SecondLastName,
		Email:          input.Email,
		Phone:          input.Phone,
		SecretHash:     secret.Digest(plaintext),
		RoleID:         input.RoleID,
	}

	created, err := e.userStore.Create(ctx, user)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrUserStoreUnavailable, nil)
		return nil, ErrUserStoreUnavailable
	}

	if e.notifier != nil {
		contact := created.Email
		if err := e.notifier.Send(ctx, contact, "Your access secret is "+plaintext); err != nil {
			e.warn("twostep: initial secret notification failed")
			e.metricInc(MetricNotifyFailure)
			e.emitAudit(ctx, auditEventNotifyFailure, false, created.ID, err, nil)
		}
	}
	plaintext = ""

	e.metricInc(MetricUserCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, nil, nil)
	return created.Redacted(), nil
}
