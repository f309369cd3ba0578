package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/diff"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/errclass"
)

var (
	diffFile    string
	diffTag     string
	diffContext int
)

var diffCmd = &cobra.Command{
	Use:   "diff [file] [tag]",
	Short: "Show changes between a stored version and the working copy",
	Long: `Show changes between a stored version and the working copy.

Without a tag the newest version is used.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := fileArg(diffFile, args)
		if file == "" {
			fmt.Println(noFileMessage)
			return nil
		}
		tag := diffTag
		if tag == "" {
			if diffFile == "" && len(args) > 1 {
				tag = args[1]
			} else if diffFile != "" && len(args) > 0 {
				tag = args[0]
			}
		}
		abs, err := requireExistingFile(file)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, false)
		if errors.Is(err, workspace.ErrNoWorkspace) {
			return errclass.ErrNotTracked.WithMessagef("%s is not tracked", abs)
		}
		if err != nil {
			return err
		}
		defer s.Close()

		if tag == "" {
			snaps, err := s.Engine.ListVersions(cmd.Context(), abs)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				return errclass.ErrVersionNotFound.WithMessagef("%s has no stored versions", abs)
			}
			tag = string(snaps[0].ID)
		}

		snap, stored, err := s.Engine.VersionContent(cmd.Context(), abs, tag)
		if err != nil {
			return err
		}
		current, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("read %s: %w", abs, err)
		}

		result := diff.Compute(abs, snap, stored, current)
		if jsonOutput {
			return outputJSON(result)
		}
		fmt.Print(result.FormatHuman(diffContext))
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVarP(&diffFile, "file", "f", "", "the file to diff")
	diffCmd.Flags().StringVarP(&diffTag, "tag", "t", "", "the version to compare against")
	diffCmd.Flags().IntVarP(&diffContext, "context", "U", diff.DefaultContext, "unchanged lines shown around each change")
	rootCmd.AddCommand(diffCmd)
}
