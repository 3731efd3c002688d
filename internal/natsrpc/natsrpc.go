// Package natsrpc serves a Scheduler over NATS request/reply.
//
// A Responder joins a queue group on <prefix>.solve and
// <prefix>.solve_with_busy, so several gokanplan processes share the load.
// Requests and replies are JSON envelopes carrying a request id.
package natsrpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Subject suffixes under the configured prefix.
const (
	SubjectSolve         = "solve"
	SubjectSolveWithBusy = "solve_with_busy"
)

// Request is the envelope a client publishes.
type Request struct {
	RequestID string           `json:"request_id"`
	Problem   schedule.Problem `json:"problem"`
}

// Reply carries either a plan or an error.
type Reply struct {
	RequestID string             `json:"request_id"`
	Plan      *schedule.Plan     `json:"plan,omitempty"`
	Error     *problemio.Failure `json:"error,omitempty"`
}

// Subject joins a prefix and a suffix.
func Subject(prefix, suffix string) string {
	return prefix + "." + suffix
}

// NewRequestID returns a random request id.
func NewRequestID() string {
	return uuid.New().String()
}

// Connect dials NATS with reconnect handling that logs every transition.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	logger.Info("connecting to NATS", zap.String("url", url))

	nc, err := nats.Connect(
		url,
		nats.Name("gokanplan"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			} else {
				logger.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := []zap.Field{zap.Error(err)}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject), zap.String("queue_group", sub.Queue))
			}
			logger.Error("NATS async error", fields...)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// HealthCheck reports an error unless nc is connected.
func HealthCheck(nc *nats.Conn) func() error {
	return func() error {
		if status := nc.Status(); status != nats.CONNECTED {
			return fmt.Errorf("nats %s", status)
		}
		return nil
	}
}

func encodeReply(rep Reply) []byte {
	data, err := json.Marshal(rep)
	if err != nil {
		// a plan or failure always marshals; keep the reply well-formed anyway
		data, _ = json.Marshal(Reply{
			RequestID: rep.RequestID,
			Error:     &problemio.Failure{Code: problemio.CodeInternal, Detail: "Internal error", Message: err.Error()},
		})
	}
	return data
}
