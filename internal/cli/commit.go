package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/savify/savify/pkg/color"
)

var commitFile string

var commitCmd = &cobra.Command{
	Use:     "commit [file]",
	Aliases: []string{"cm"},
	Short:   "Store the current content of a file as a new version",
	Long: `Store the current content of a file as a new version.

The first commit of a file starts tracking it on a fresh history line
("Version 1"); every later commit adds "Version N+1".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := fileArg(commitFile, args)
		if file == "" {
			fmt.Println(noFileMessage)
			return nil
		}
		abs, err := requireExistingFile(file)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Engine.Commit(cmd.Context(), abs)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}
		name := filepath.Base(abs)
		if res.Created {
			fmt.Printf("Created a new git branch called %s to track %s\n", color.Line(res.File.LineID), name)
			fmt.Println(color.Success("Committed first version"))
			return nil
		}
		fmt.Printf("Stored new version of %s (%s, %s)\n", name, res.Snapshot.Label, color.SnapshotID(res.Snapshot.ID.ShortID()))
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVarP(&commitFile, "file", "f", "", "the file to commit")
	rootCmd.AddCommand(commitCmd)
}
