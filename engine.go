package twostep

import (
	"log"

	"github.com/jmcastano/twostep/token"
)

// Engine drives the two-step authentication protocol. It composes the
// caller's UserStore and Notifier with a LoginStore and a token manager,
// all fixed at Build time. An Engine is safe for concurrent use.
type Engine struct {
	config     Config
	userStore  UserStore
	loginStore LoginStore
	notifier   Notifier
	tokens     *token.Manager
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close flushes and stops the audit dispatcher. It does not close the
// Redis client, which belongs to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// ValidateToken verifies a previously issued token against the process-wide
// signing key and returns its identity claims. Downstream authorization
// reads the role claim from the result.
func (e *Engine) ValidateToken(tokenString string) (*token.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Parse(tokenString)
	if err != nil {
		e.metricInc(MetricTokenParseFailure)
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TokenRole verifies a token and returns its role claim.
func (e *Engine) TokenRole(tokenString string) (string, error) {
	claims, err := e.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string) {
	log.Print(msg)
}
