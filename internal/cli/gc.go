package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/gc"
	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/model"
)

var (
	gcDryRun bool
	gcGrace  string
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete repository objects left behind by removed versions",
	Long: `Delete repository objects left behind by removed versions.

Deleting versions only drops history lines; their file contents stay in the
repository until collected. gc removes loose objects no branch, tag or staged
file refers to and that are older than the grace period (default 336h, two
weeks). Use --grace 0 to collect everything unreachable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grace, err := parseGrace(gcGrace)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		collector := gc.NewCollector(s.Git, s.Audit)
		plan, err := collector.Plan(cmd.Context(), grace)
		if err != nil {
			return err
		}

		if gcDryRun {
			if jsonOutput {
				return outputJSON(plan)
			}
			fmt.Printf("%d unreachable object(s) would be deleted\n", len(plan.ToDelete))
			for _, id := range plan.ToDelete {
				fmt.Println("  " + color.SnapshotID(id))
			}
			return nil
		}

		var res *model.GCResult
		if len(plan.ToDelete) > 0 {
			res, err = collector.Run(cmd.Context(), plan)
			if err != nil {
				return err
			}
		} else {
			res = &model.GCResult{PlanID: plan.PlanID}
		}

		if jsonOutput {
			return outputJSON(res)
		}
		fmt.Printf("Deleted %d unreachable object(s)\n", res.Deleted)
		if res.Skipped > 0 {
			fmt.Printf("Skipped %d object(s) that became reachable\n", res.Skipped)
		}
		return nil
	},
}

func parseGrace(s string) (time.Duration, error) {
	if s == "" {
		return gc.DefaultGrace, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid --grace %q: use a duration such as 24h", s)
	}
	return d, nil
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "list the objects without deleting them")
	gcCmd.Flags().StringVar(&gcGrace, "grace", "", "only delete objects older than this duration (default 336h)")
	rootCmd.AddCommand(gcCmd)
}
