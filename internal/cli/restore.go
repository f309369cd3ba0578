package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/errclass"
)

var (
	restoreFile string
	restoreTag  string
)

var restoreCmd = &cobra.Command{
	Use:     "restore [file] [tag]",
	Aliases: []string{"rs"},
	Short:   "Overwrite a file with one of its stored versions",
	Long: `Overwrite a file with one of its stored versions.

The tag is a version identifier as printed by "savify ls", a unique prefix of
at least 4 characters, or a label such as "Version 2". Restoring does not
create a version; commit afterwards to keep the restored content as the newest.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := fileArg(restoreFile, args)
		if file == "" {
			fmt.Println(noFileMessage)
			return nil
		}
		tag := restoreTag
		if tag == "" {
			if restoreFile == "" && len(args) > 1 {
				tag = args[1]
			} else if restoreFile != "" && len(args) > 0 {
				tag = args[0]
			}
		}
		abs, err := requireExistingFile(file)
		if err != nil {
			return err
		}

		notTracked := func() error {
			fmt.Println("ERROR: Cannot restore. File is not being tracked by versions.")
			return exitWith(1)
		}
		s, err := openSession(cmd, false)
		if errors.Is(err, workspace.ErrNoWorkspace) {
			return notTracked()
		}
		if err != nil {
			return err
		}
		defer s.Close()

		if tag == "" {
			if _, err := s.Engine.ListVersions(cmd.Context(), abs); errors.Is(err, errclass.ErrNotTracked) {
				return notTracked()
			}
			fmt.Println("Tag value is required for savify to restore your file.")
			fmt.Println(listHint(abs))
			return exitWith(1)
		}

		snap, err := s.Engine.RestoreVersion(cmd.Context(), abs, tag)
		switch {
		case errors.Is(err, errclass.ErrNotTracked):
			return notTracked()
		case errors.Is(err, errclass.ErrVersionNotFound):
			fmt.Printf("No version of %s found for the tag %s\n", filepath.Base(abs), tag)
			snaps, _ := s.Engine.ListVersions(cmd.Context(), abs)
			fmt.Println(color.Dim("  " + suggestVersions(tag, snaps, abs)))
			return exitWith(1)
		case err != nil:
			return err
		}

		if jsonOutput {
			return outputJSON(snap)
		}
		fmt.Printf("%s successfully restored to version %s (%s)\n",
			filepath.Base(abs), color.SnapshotID(string(snap.ID)), snap.Label)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreFile, "file", "f", "", "the file to restore")
	restoreCmd.Flags().StringVarP(&restoreTag, "tag", "t", "", "the version to restore")
	rootCmd.AddCommand(restoreCmd)
}
