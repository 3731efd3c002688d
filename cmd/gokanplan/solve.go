package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/logging"
	"github.com/gitrdm/gokanplan/internal/parallel"
	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

var solveCmd = &cobra.Command{
	Use:   "solve FILE...",
	Short: "Solve problem files (JSON or YAML; - reads stdin)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSolve,
}

var (
	solveAvailability bool
	solveBudget       time.Duration
	solveWorkers      int
	solveJobs         int
	solveOutput       string
	solveVerify       bool
	solveSummary      bool
)

func init() {
	f := solveCmd.Flags()
	f.BoolVarP(&solveAvailability, "availability", "a", false, "honor busy windows")
	f.DurationVar(&solveBudget, "budget", 0, "time budget per problem (default solver.time_budget)")
	f.IntVar(&solveWorkers, "workers", 0, "engine portfolio size per problem (default solver.workers)")
	f.IntVarP(&solveJobs, "jobs", "j", 2, "problems solved at once")
	f.StringVarP(&solveOutput, "output", "o", "text", "output format: json, yaml or text")
	f.BoolVar(&solveVerify, "verify", false, "check each plan before printing it")
	f.BoolVar(&solveSummary, "summary", false, "print the problem before its plan (text output)")
}

type solveResult struct {
	problem schedule.Problem
	plan    *schedule.Plan
	err     error
}

func runSolve(cmd *cobra.Command, args []string) error {
	format, err := problemio.ParseFormat(solveOutput)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("budget") {
		cfg.Solver.TimeBudget = solveBudget
	}
	if cmd.Flags().Changed("workers") {
		cfg.Solver.Workers = solveWorkers
	}
	if cmd.Flags().Changed("verify") {
		cfg.Solver.Verify = solveVerify
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries plans only
	if logLevel == "" {
		cfg.Logger.Level = "warn"
	}
	logger, err := logging.BuildTo(logging.Config{Level: cfg.Logger.Level, Encoding: "console"},
		cmd.ErrOrStderr(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	sch := newScheduler(cfg, logger.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results := make([]solveResult, len(args))
	err = parallel.ForEach(ctx, solveJobs, len(args), func(ctx context.Context, i int) {
		results[i] = solveOne(ctx, sch, args[i], cmd.InOrStdin())
		if results[i].err != nil {
			logger.Debug("problem failed", zap.String("file", args[i]), zap.Error(results[i].err))
		}
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, res := range results {
		if len(args) > 1 && format == problemio.Text {
			fmt.Fprintf(out, "==> %s <==\n", args[i])
		}
		if res.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[i], res.err)
			continue
		}
		if solveSummary && format == problemio.Text {
			if err := problemio.WriteSummary(out, res.problem); err != nil {
				return err
			}
		}
		if err := problemio.EncodePlan(out, res.plan, format); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d problems failed", failed, len(args))
	}
	return nil
}

func solveOne(ctx context.Context, sch *schedule.Scheduler, path string, stdin io.Reader) solveResult {
	var (
		p   schedule.Problem
		err error
	)
	if path == "-" {
		p, err = problemio.DecodeProblem(stdin, "")
	} else {
		p, err = problemio.ReadProblemFile(path)
	}
	if err != nil {
		return solveResult{err: err}
	}

	var plan *schedule.Plan
	if solveAvailability {
		plan, err = sch.SolveWithAvailability(ctx, p)
	} else {
		plan, err = sch.Solve(ctx, p)
	}
	return solveResult{problem: p, plan: plan, err: err}
}
