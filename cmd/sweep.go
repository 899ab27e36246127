package cmd

import (
	"context"
	"fmt"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	bulkDomain "github.com/AzielCF/az-admin/bulk/domain"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a housekeeping bulk operation as the system actor",
	Long: `Runs cleanup_expired across every expirable collection, or the maintenance
repair pass with --maintenance. Meant for cron or a scheduled job.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Bool("maintenance", false, "repair orphaned references instead of removing expired rows")
	sweepCmd.Flags().Duration("timeout", 5*time.Minute, "abort the sweep after this long")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	defer StopApp()

	maintenance, _ := cmd.Flags().GetBool("maintenance")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := bulkDomain.Request{
		Action:    bulkDomain.ActionCleanupExpired,
		Target:    bulkDomain.TargetAll,
		Filters:   map[string]any{},
		Confirmed: true,
	}
	if maintenance {
		req.Action = bulkDomain.ActionMaintenance
	}

	actor := accessDomain.SystemActor
	actor.UserAgent = "az-admin sweep"

	result, err := bulkEngine.Execute(ctx, actor, req)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", req.Action, err)
	}

	logrus.WithFields(logrus.Fields{
		"action":           result.Action,
		"records_affected": result.RecordsAffected,
		"sub_results":      result.SubResults,
	}).Info("[BULK] sweep finished")
	return nil
}
