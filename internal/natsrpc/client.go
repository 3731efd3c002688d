package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Client sends solve requests to a Responder.
type Client struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

// NewClient uses timeout when ctx carries no deadline.
func NewClient(nc *nats.Conn, prefix string, timeout time.Duration) *Client {
	return &Client{nc: nc, prefix: prefix, timeout: timeout}
}

// Solve requests a plan for a problem without busy windows.
func (c *Client) Solve(ctx context.Context, p schedule.Problem) (*schedule.Plan, error) {
	return c.request(ctx, SubjectSolve, p)
}

// SolveWithAvailability requests a plan honoring busy windows.
func (c *Client) SolveWithAvailability(ctx context.Context, p schedule.Problem) (*schedule.Plan, error) {
	return c.request(ctx, SubjectSolveWithBusy, p)
}

func (c *Client) request(ctx context.Context, suffix string, p schedule.Problem) (*schedule.Plan, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	data, err := json.Marshal(Request{RequestID: NewRequestID(), Problem: p})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	subject := Subject(c.prefix, suffix)
	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return DecodeReply(msg.Data)
}

// DecodeReply turns a reply into a plan or an error. A failure reply is
// returned as *problemio.Failure, which matches the schedule sentinels
// with errors.Is.
func DecodeReply(data []byte) (*schedule.Plan, error) {
	var rep Reply
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if rep.Error != nil {
		return nil, rep.Error
	}
	if rep.Plan == nil {
		return nil, fmt.Errorf("reply %s carries neither plan nor error", rep.RequestID)
	}
	return rep.Plan, nil
}
