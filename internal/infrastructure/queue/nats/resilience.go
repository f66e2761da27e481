package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/raggae/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// connectivity errors clear up once the client reconnects.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionDraining,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrSlowConsumer,
	nats.ErrStaleConnection,
}

// misuse errors never succeed on retry and say nothing about server health.
var callerNATSErrors = []error{
	nats.ErrBadSubject,
	nats.ErrMaxPayload,
	nats.ErrInvalidMsg,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.Ignored
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Ignored
	case resilience.IsCircuitOpen(err), matchesAny(err, transientNATSErrors):
		return resilience.Transient
	case matchesAny(err, callerNATSErrors):
		return resilience.Ignored
	default:
		return resilience.Permanent
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporaryWith("nats publish", err, classifyNATSError)
}
