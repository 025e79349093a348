package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summaryTenant string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Display the aggregate alert summary for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if summaryTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		return getApp().Summary(cmd.Context(), summaryTenant)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryTenant, "tenant", "", "Tenant to summarise")
}
