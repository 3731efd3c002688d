// Command gokanplan schedules tasks onto workers and machines.
//
//	gokanplan solve problem.yaml           solve files locally
//	gokanplan serve --config gokanplan.yaml  HTTP and NATS service
//	gokanplan submit problem.json          solve through a running service
//	gokanplan version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/config"
	"github.com/gitrdm/gokanplan/internal/logging"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

var rootCmd = &cobra.Command{
	Use:   "gokanplan",
	Short: "gokanplan - dual-resource task scheduler",
	Long: `gokanplan assigns every task a worker, a machine and a start time so that
capabilities match, nothing overlaps, busy windows are respected and the
makespan is as small as possible.`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logger.level")

	rootCmd.AddCommand(solveCmd, serveCmd, submitCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the global flag overrides.
func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	return cfg, loader, nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.Build(logging.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
}

func newScheduler(cfg *config.Config, logger *zap.Logger) *schedule.Scheduler {
	return schedule.New(
		schedule.WithEngine(schedule.CPEngine{Workers: cfg.Solver.Workers, NodeLimit: cfg.Solver.NodeLimit}),
		schedule.WithTimeBudget(cfg.Solver.TimeBudget),
		schedule.WithVerify(cfg.Solver.Verify),
		schedule.WithLogger(logger),
	)
}
