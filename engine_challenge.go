package twostep

import (
	"context"
	"errors"
)

// VerifyChallenge runs Step B of the protocol: it matches the submission
// against an unconsumed login record, issues a signed token, and consumes
// the record. Consumption is atomic; of two concurrent submissions for the
// same record exactly one receives a token, the other ErrInvalidChallenge.
//
// A login-store write failure during consumption is surfaced as
// ErrLoginStoreUnavailable and the computed token is discarded; the engine
// never reports success for a consumption that did not land.
func (e *Engine) VerifyChallenge(ctx context.Context, submission ChallengeSubmission) (*AuthResult, error) {
	if e == nil || e.userStore == nil || e.loginStore == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if submission.UserID == "" || submission.Code == "" {
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, submission.UserID, ErrInvalidChallenge, func() map[string]string {
			return map[string]string{"reason": "empty_submission"}
		})
		return nil, ErrInvalidChallenge
	}

	record, err := e.loginStore.FindPendingMatch(ctx, submission.UserID, submission.Code)
	if err != nil {
		if errors.Is(err, ErrLoginRecordNotFound) {
			e.metricInc(MetricChallengeFailure)
			e.emitAudit(ctx, auditEventChallengeFailure, false, submission.UserID, ErrInvalidChallenge, func() map[string]string {
				return map[string]string{"reason": "no_pending_match"}
			})
			return nil, ErrInvalidChallenge
		}
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, submission.UserID, err, nil)
		return nil, mapLoginStoreError(err)
	}

	user, err := e.userStore.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Record outlived its user; nothing to authenticate.
			e.metricInc(MetricChallengeFailure)
			e.emitAudit(ctx, auditEventChallengeFailure, false, record.UserID, ErrUserNotFound, nil)
			return nil, ErrInvalidChallenge
		}
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, record.UserID, ErrUserStoreUnavailable, nil)
		return nil, ErrUserStoreUnavailable
	}

	issued, err := e.tokens.Create(user.DisplayName(), user.RoleID, user.Email)
	if err != nil {
		// Key material was validated at Build; a signing failure here is
		// unexpected and surfaced as-is.
		e.metricInc(MetricChallengeFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, user.ID, err, nil)
		return nil, err
	}

	if err := e.loginStore.Consume(ctx, record.ID, issued); err != nil {
		if errors.Is(err, ErrLoginRecordConsumed) || errors.Is(err, ErrLoginRecordNotFound) {
			// Lost the race: a concurrent submission consumed this record
			// first. The token computed above is dropped.
			e.metricInc(MetricChallengeReplay)
			e.metricInc(MetricChallengeFailure)
			e.emitAudit(ctx, auditEventChallengeReplay, false, user.ID, ErrLoginRecordConsumed, func() map[string]string {
				return map[string]string{"record_id": record.ID}
			})
			return nil, ErrInvalidChallenge
		}
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"record_id": record.ID}
		})
		return nil, mapLoginStoreError(err)
	}

	e.metricInc(MetricChallengeSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventChallengeSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"record_id": record.ID}
	})
	return &AuthResult{User: user.Redacted(), Token: issued}, nil
}
