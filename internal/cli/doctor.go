package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/doctor"
	"github.com/savify/savify/pkg/color"
)

var (
	doctorRepair       bool
	doctorPruneOrphans bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the index and the repository agree",
	Long: `Check that the index and the repository agree.

Reports index entries whose history line is missing, history lines no index
entry refers to, an active line left off the default line, and a broken audit
log. Use --repair to fix what can be fixed safely and --prune-orphans to also
delete unreferenced history lines.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		doc := doctor.NewDoctor(s)
		var result *doctor.Result
		if doctorRepair || doctorPruneOrphans {
			result, err = doc.Repair(cmd.Context(), doctor.RepairOptions{PruneOrphans: doctorPruneOrphans})
		} else {
			result, err = doc.Check(cmd.Context())
		}
		if result == nil {
			return err
		}
		if err != nil {
			fmtErr("doctor: %v", err)
		}

		if jsonOutput {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
		} else {
			for _, r := range result.Repaired {
				fmt.Printf("%s %s\n", color.Success("repaired:"), r)
			}
			if len(result.Findings) == 0 {
				fmt.Println("Workspace is healthy.")
			} else {
				fmt.Printf("Findings (%d):\n", len(result.Findings))
				for _, f := range result.Findings {
					fmt.Printf("  [%s] %s: %s", f.Severity, f.Category, f.Description)
					if f.Path != "" {
						fmt.Printf(" (%s)", f.Path)
					}
					fmt.Println()
				}
			}
		}

		if !result.Healthy || err != nil {
			return exitWith(1)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "fix dangling entries, the active line and temp files")
	doctorCmd.Flags().BoolVar(&doctorPruneOrphans, "prune-orphans", false, "delete history lines the index does not reference")
	rootCmd.AddCommand(doctorCmd)
}
