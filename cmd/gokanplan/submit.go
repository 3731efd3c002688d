package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/natsrpc"
	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

var submitCmd = &cobra.Command{
	Use:   "submit FILE",
	Short: "Send a problem to a running service over NATS",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var (
	submitAvailability bool
	submitOutput       string
	submitURL          string
)

func init() {
	f := submitCmd.Flags()
	f.BoolVarP(&submitAvailability, "availability", "a", false, "honor busy windows")
	f.StringVarP(&submitOutput, "output", "o", "text", "output format: json, yaml or text")
	f.StringVar(&submitURL, "nats-url", "", "NATS server (default nats.url)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	format, err := problemio.ParseFormat(submitOutput)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if submitURL != "" {
		cfg.NATS.URL = submitURL
	}

	var p schedule.Problem
	if args[0] == "-" {
		p, err = problemio.DecodeProblem(os.Stdin, "")
	} else {
		p, err = problemio.ReadProblemFile(args[0])
	}
	if err != nil {
		return err
	}

	if logLevel == "" {
		cfg.Logger.Level = "warn"
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	nc, err := natsrpc.Connect(cfg.NATS.URL, logger.Logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	client := natsrpc.NewClient(nc, cfg.NATS.SubjectPrefix, cfg.NATS.RequestTimeout)
	var plan *schedule.Plan
	if submitAvailability {
		plan, err = client.SolveWithAvailability(cmd.Context(), p)
	} else {
		plan, err = client.Solve(cmd.Context(), p)
	}
	if err != nil {
		var f *problemio.Failure
		if errors.As(err, &f) {
			logger.Debug("service rejected the problem", zap.String("code", f.Code), zap.String("cause", f.Cause))
			return fmt.Errorf("%s (%s)", f.Message, f.Code)
		}
		return err
	}
	return problemio.EncodePlan(cmd.OutOrStdout(), plan, format)
}
