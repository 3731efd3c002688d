package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gitrdm/gokanplan/internal/parallel"
	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

func newResponder() *Responder {
	var src atomic.Pointer[schedule.Scheduler]
	src.Store(schedule.New(schedule.WithTimeBudget(5 * time.Second)))
	return NewResponder(nil, &src, "schedule")
}

func busyProblem() schedule.Problem {
	return schedule.Problem{
		Workers:  []schedule.Resource{{ID: "w", Types: schedule.TagSet{"A"}}},
		Machines: []schedule.Resource{{ID: "m", Types: schedule.TagSet{"A"}, BusyWindows: []schedule.BusyWindow{{Start: 0, End: 5}}}},
		Tasks:    []schedule.Task{{ID: "t", Type: "A", Duration: 4, Deadline: 20}},
	}
}

func encode(t *testing.T, req Request) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "schedule.solve_with_busy", Subject("schedule", SubjectSolveWithBusy))
}

func TestHandle_SolveWithBusy(t *testing.T) {
	r := newResponder()
	rep := r.Handle(context.Background(), "schedule.solve_with_busy",
		encode(t, Request{RequestID: "req-1", Problem: busyProblem()}))

	require.Nil(t, rep.Error)
	assert.Equal(t, "req-1", rep.RequestID)
	require.NotNil(t, rep.Plan)
	assert.Equal(t, 9, rep.Plan.Makespan)
	assert.Equal(t, 5, rep.Plan.Assignments[0].Start)
}

func TestHandle_SolveRejectsBusyWindows(t *testing.T) {
	rep := newResponder().Handle(context.Background(), "schedule.solve",
		encode(t, Request{Problem: busyProblem()}))
	require.NotNil(t, rep.Error)
	assert.Equal(t, problemio.CodeInvalidProblem, rep.Error.Code)
	assert.NotEmpty(t, rep.RequestID, "a request id is minted when the client sends none")
}

func TestHandle_Infeasible(t *testing.T) {
	p := busyProblem()
	p.Tasks[0].Deadline = 8
	rep := newResponder().Handle(context.Background(), "schedule.solve_with_busy", encode(t, Request{Problem: p}))
	require.NotNil(t, rep.Error)
	assert.Equal(t, problemio.CodeInfeasible, rep.Error.Code)
	assert.Equal(t, "No feasible schedule", rep.Error.Detail)
	assert.Equal(t, string(schedule.CauseContention), rep.Error.Cause)
}

func TestHandle_BadPayload(t *testing.T) {
	r := newResponder()
	rep := r.Handle(context.Background(), "schedule.solve", []byte("not json"))
	require.NotNil(t, rep.Error)
	assert.Equal(t, problemio.CodeInvalidProblem, rep.Error.Code)

	rep = r.Handle(context.Background(), "schedule.other", encode(t, Request{}))
	require.NotNil(t, rep.Error)
	assert.Equal(t, problemio.CodeInternal, rep.Error.Code)
}

func TestDecodeReply(t *testing.T) {
	r := newResponder()
	ok := encodeReply(r.Handle(context.Background(), "schedule.solve_with_busy", encode(t, Request{Problem: busyProblem()})))
	plan, err := DecodeReply(ok)
	require.NoError(t, err)
	assert.Equal(t, 9, plan.Makespan)

	p := busyProblem()
	p.Tasks[0].Type = "B"
	bad := encodeReply(r.Handle(context.Background(), "schedule.solve_with_busy", encode(t, Request{Problem: p})))
	_, err = DecodeReply(bad)
	assert.ErrorIs(t, err, schedule.ErrNoFeasibleSchedule)
	assert.NotErrorIs(t, err, schedule.ErrSolverTimeout)

	_, err = DecodeReply([]byte(`{"request_id":"x"}`))
	assert.Error(t, err)
	_, err = DecodeReply([]byte(`{`))
	assert.Error(t, err)
}

func TestStart_RequiresConnection(t *testing.T) {
	r := newResponder()
	assert.Error(t, r.Start())
	r.Stop()
}

func TestStop_FinishesQueuedRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var src atomic.Pointer[schedule.Scheduler]
	src.Store(schedule.New(schedule.WithTimeBudget(5 * time.Second)))
	r := NewResponder(nil, &src, "schedule", WithResponderLogger(zap.New(core)))
	r.pool = parallel.NewWorkerPool(1)

	for i := 0; i < 3; i++ {
		r.dispatch(&nats.Msg{
			Subject: Subject("schedule", SubjectSolveWithBusy),
			Data:    encode(t, Request{RequestID: fmt.Sprintf("req-%d", i), Problem: busyProblem()}),
		})
	}
	r.Stop()

	assert.Equal(t, 3, logs.FilterMessage("NATS request solved").Len())
	assert.Zero(t, logs.FilterMessage("NATS request rejected").Len(), "queued requests were cancelled")
	assert.Error(t, r.ctx.Err(), "Stop cancels the responder context last")
}
