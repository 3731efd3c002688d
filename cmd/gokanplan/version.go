package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Set with -ldflags "-X main.commit=... -X main.date=...".
var (
	commit = ""
	date   = ""
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := schedule.GetVersionInfo(commit, date)
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "gokanplan %s (%s)", info.Version, info.GoVersion)
		if info.GitCommit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " commit %s", info.GitCommit)
		}
		if info.BuildDate != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " built %s", info.BuildDate)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}
