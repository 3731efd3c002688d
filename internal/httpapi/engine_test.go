package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gitrdm/gokanplan/pkg/cp"
)

type failingEngine struct{}

func (failingEngine) Solve(context.Context, *cp.Model, *cp.IntVar, time.Duration) (*cp.Result, error) {
	return nil, errors.New("engine unavailable")
}
