package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/index"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
)

// allVersionsTag selects every version of a file.
const allVersionsTag = "all"

var (
	removeFile string
	removeTag  string
)

var removeCmd = &cobra.Command{
	Use:     "remove [file] [tag|all]",
	Aliases: []string{"rm"},
	Short:   "Delete one version of a file, or all of them",
	Long: `Delete one version of a file, or all of them.

With the tag "all" the file's history line is deleted and the file is no
longer tracked. With a version tag only that version is removed: the
remaining versions keep their content and are renumbered "Version 1".."N",
so versions newer than the removed one get new tags.

Removing versions of a file that is not tracked does nothing.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := fileArg(removeFile, args)
		if file == "" {
			fmt.Println(noFileMessage)
			return nil
		}
		tag := removeTag
		if tag == "" {
			if removeFile == "" && len(args) > 1 {
				tag = args[1]
			} else if removeFile != "" && len(args) > 0 {
				tag = args[0]
			}
		}
		abs, err := requireExistingFile(file)
		if err != nil {
			return err
		}
		name := filepath.Base(abs)

		untracked := func() error {
			fmt.Printf("No versions of %s are currently being tracked by savify.\n", name)
			return nil
		}
		s, err := openSession(cmd, false)
		if errors.Is(err, workspace.ErrNoWorkspace) {
			return untracked()
		}
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.Index.Find(cmd.Context(), abs); errors.Is(err, index.ErrNotFound) {
			return untracked()
		} else if err != nil {
			return err
		}

		if tag == "" {
			fmt.Println("Tag value is required for savify to know which version to delete.")
			fmt.Println(listHint(abs))
			fmt.Printf("Use special tag value %q to delete all versions of the file.\n", allVersionsTag)
			return exitWith(1)
		}

		if tag == allVersionsTag {
			if _, err := s.Engine.DeleteAllVersions(cmd.Context(), abs); err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string]any{"path": abs, "removed": allVersionsTag, "remaining": []model.Snapshot{}})
			}
			fmt.Printf("Deleted all tracked versions of %s\n", name)
			return nil
		}

		remaining, err := s.Engine.DeleteOneVersion(cmd.Context(), abs, tag)
		switch {
		case errors.Is(err, errclass.ErrVersionNotFound):
			fmt.Printf("ERROR: No version of %s found for the tag %s\n", name, tag)
			snaps, _ := s.Engine.ListVersions(cmd.Context(), abs)
			fmt.Println(color.Dim("  " + suggestVersions(tag, snaps, abs)))
			return exitWith(1)
		case err != nil:
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]any{"path": abs, "removed": tag, "remaining": remaining})
		}
		if len(remaining) == 0 {
			fmt.Printf("Deleted the last version of %s; it is no longer tracked\n", name)
			return nil
		}
		fmt.Printf("Deleted version %s of %s; %d remaining\n", tag, name, len(remaining))
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVarP(&removeFile, "file", "f", "", "the file whose versions to delete")
	removeCmd.Flags().StringVarP(&removeTag, "tag", "t", "", `the version to delete, or "all"`)
	rootCmd.AddCommand(removeCmd)
}
