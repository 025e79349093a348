package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"perf-anomaly-alerts/internal/app"
)

var (
	resolveTenant string
	resolveScope  string
	resolveNotes  string
	resolveAll    bool
)

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert without resolving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Acknowledge(cmd.Context(), args[0])
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [alert-id]",
	Short: "Resolve one alert, or every matching alert with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ResolveOptions{
			Tenant: resolveTenant,
			Scope:  resolveScope,
			Notes:  resolveNotes,
			All:    resolveAll,
		}
		if len(args) == 1 {
			opts.AlertID = args[0]
		}
		if opts.AlertID != "" && opts.All {
			return fmt.Errorf("an alert id and --all are mutually exclusive")
		}
		return getApp().Resolve(cmd.Context(), opts)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveTenant, "tenant", "", "Tenant filter for --all")
	resolveCmd.Flags().StringVar(&resolveScope, "scope", "", "Scope filter for --all")
	resolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "Resolution notes stored on the alert")
	resolveCmd.Flags().BoolVar(&resolveAll, "all", false, "Resolve every matching unresolved alert")
}
