package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/parallel"
	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Source yields the Scheduler serving the next request.
type Source interface {
	Load() *schedule.Scheduler
}

// Responder answers solve requests from a NATS queue group.
type Responder struct {
	nc      *nats.Conn
	source  Source
	prefix  string
	queue   string
	workers int
	logger  *zap.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	pool   *parallel.WorkerPool
	ctx    context.Context
	cancel context.CancelFunc
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithQueueGroup sets the queue group; the default is "gokanplan".
func WithQueueGroup(q string) ResponderOption {
	return func(r *Responder) { r.queue = q }
}

// WithConcurrency bounds how many requests are solved at once.
func WithConcurrency(n int) ResponderOption {
	return func(r *Responder) { r.workers = n }
}

// WithResponderLogger sets the logger.
func WithResponderLogger(l *zap.Logger) ResponderOption {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResponder prepares a responder on prefix. nc may be nil when only
// Handle is used.
func NewResponder(nc *nats.Conn, source Source, prefix string, opts ...ResponderOption) *Responder {
	r := &Responder{
		nc:      nc,
		source:  source,
		prefix:  prefix,
		queue:   "gokanplan",
		workers: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Start subscribes to both subjects.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nc == nil {
		return errors.New("natsrpc: responder has no connection")
	}
	if len(r.subs) > 0 {
		return errors.New("natsrpc: responder already started")
	}
	r.pool = parallel.NewWorkerPool(r.workers)

	for _, suffix := range []string{SubjectSolve, SubjectSolveWithBusy} {
		subject := Subject(r.prefix, suffix)
		sub, err := r.nc.QueueSubscribe(subject, r.queue, r.dispatch)
		if err != nil {
			r.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("NATS responder subscribed",
			zap.String("subject", subject), zap.String("queue_group", r.queue))
	}
	return nil
}

// Stop drains the subscriptions and waits until every accepted request,
// queued or running, has been solved and answered. Each solve is bounded
// by the scheduler's time budget.
func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked()
	if r.pool != nil {
		r.pool.Shutdown()
		r.pool = nil
	}
	r.cancel()
}

func (r *Responder) unsubscribeLocked() {
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil {
			r.logger.Warn("NATS drain failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	r.subs = nil
}

func (r *Responder) dispatch(msg *nats.Msg) {
	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()
	if pool == nil {
		return
	}
	err := pool.Submit(r.ctx, func() {
		rep := r.Handle(r.ctx, msg.Subject, msg.Data)
		if err := msg.Respond(encodeReply(rep)); err != nil {
			r.logger.Warn("NATS reply failed", zap.String("request_id", rep.RequestID), zap.Error(err))
		}
	})
	if err != nil {
		r.logger.Warn("NATS request dropped", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Handle decodes one request, solves it and builds the reply.
func (r *Responder) Handle(ctx context.Context, subject string, data []byte) Reply {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return r.failure(NewRequestID(), fmt.Errorf("%w: %w", schedule.ErrInvalidProblem, err))
	}
	if req.RequestID == "" {
		req.RequestID = NewRequestID()
	}

	start := time.Now()
	sch := r.source.Load()
	var (
		plan *schedule.Plan
		err  error
	)
	switch strings.TrimPrefix(subject, r.prefix+".") {
	case SubjectSolve:
		plan, err = sch.Solve(ctx, req.Problem)
	case SubjectSolveWithBusy:
		plan, err = sch.SolveWithAvailability(ctx, req.Problem)
	default:
		err = fmt.Errorf("natsrpc: unknown subject %q", subject)
	}
	if err != nil {
		return r.failure(req.RequestID, err)
	}
	r.logger.Info("NATS request solved",
		zap.String("request_id", req.RequestID),
		zap.String("subject", subject),
		zap.Int("makespan", plan.Makespan),
		zap.Duration("duration", time.Since(start)),
	)
	return Reply{RequestID: req.RequestID, Plan: plan}
}

func (r *Responder) failure(id string, err error) Reply {
	f := problemio.DescribeError(err)
	if f.Code == problemio.CodeInternal {
		r.logger.Error("NATS request failed", zap.String("request_id", id), zap.Error(err))
	} else {
		r.logger.Info("NATS request rejected", zap.String("request_id", id), zap.String("code", f.Code), zap.Error(err))
	}
	return Reply{RequestID: id, Error: &f}
}
