package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/color"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Start using savify in a directory",
	Long: `Start using savify in a directory (default: the current one).

This creates the .savify/ state directory, opens the git repository of the
directory (creating one if needed), records its current branch as the default
line and gives that line a first bookkeeping commit if it has none.
"savify commit" does the same implicitly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return fmt.Errorf("create %s: %w", abs, err)
		}

		ws, err := workspace.Init(abs)
		if err != nil {
			return fmt.Errorf("failed to initialize workspace: %w", err)
		}
		if err := applyLoggingConfig(ws.Root); err != nil {
			return err
		}
		s, err := workspace.Open(cmd.Context(), ws, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		if jsonOutput {
			return outputJSON(map[string]any{
				"root":           ws.Root,
				"format_version": ws.FormatVersion,
				"workspace_id":   ws.WorkspaceID,
				"default_line":   s.Config.DefaultLine,
				"repo_created":   s.RepoCreated,
			})
		}
		if s.RepoCreated {
			fmt.Printf("Created new git repository at %s\n", ws.Root)
		}
		fmt.Printf("Initialized savify workspace in %s\n", color.Success(ws.Root))
		fmt.Printf("  Default line: %s\n", color.Line(s.Config.DefaultLine))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
