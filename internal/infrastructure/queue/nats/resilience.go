package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

// submitOperation names the breaker guarding pipeline job publishes.
const submitOperation = "pipeline.submit"

var (
	transient = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	// A rejected job says nothing about broker health, so it never trips the breaker.
	rejectedJob = resilience.ErrorClassification{}
)

func classifySubmitError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return transient
	case errors.Is(err, nats.ErrMaxPayload),
		errors.Is(err, nats.ErrBadSubject),
		errors.Is(err, nats.ErrInvalidMsg):
		return rejectedJob
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return transient
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// wrapTemporaryIfNeeded marks broker trouble as ErrTemporary so the upload answers 503.
// A rejected job is a deployment fault and stays a plain error.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifySubmitError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "submit pipeline job", err)
	}
	return err
}
