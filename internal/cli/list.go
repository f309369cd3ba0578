package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
)

var listFile string

var listCmd = &cobra.Command{
	Use:     "list [file]",
	Aliases: []string{"ls"},
	Short:   "List tracked files, or the versions of one file",
	Long: `List tracked files, or the versions of one file.

Without a file, every tracked file is printed. With a file, its versions are
printed newest first. The exit status is 1 when there is nothing to list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := fileArg(listFile, args)
		if file == "" {
			return listTrackedFiles(cmd)
		}
		abs, err := requireExistingFile(file)
		if err != nil {
			return err
		}
		return listVersions(cmd, abs)
	},
}

func listTrackedFiles(cmd *cobra.Command) error {
	s, err := openSession(cmd, false)
	if errors.Is(err, workspace.ErrNoWorkspace) {
		if jsonOutput {
			outputJSON([]model.TrackedFile{})
		} else {
			fmt.Println("No files are being tracked by savify.")
		}
		return exitWith(1)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	files, err := s.Engine.ListAllTrackedFiles(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := outputJSON(files); err != nil {
			return err
		}
	} else if len(files) == 0 {
		fmt.Println("No files are being tracked by savify.")
	} else {
		fmt.Println(color.Header("Files being tracked by savify:"))
		for _, f := range files {
			fmt.Println(f.Path)
		}
	}
	if len(files) == 0 {
		return exitWith(1)
	}
	return nil
}

func listVersions(cmd *cobra.Command, abs string) error {
	untracked := func() error {
		if jsonOutput {
			outputJSON([]model.Snapshot{})
		} else {
			fmt.Printf("No versions of %s are currently being tracked by savify.\n", filepath.Base(abs))
		}
		return exitWith(1)
	}

	s, err := openSession(cmd, false)
	if errors.Is(err, workspace.ErrNoWorkspace) {
		return untracked()
	}
	if err != nil {
		return err
	}
	defer s.Close()

	snaps, err := s.Engine.ListVersions(cmd.Context(), abs)
	if errors.Is(err, errclass.ErrNotTracked) {
		return untracked()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := outputJSON(snaps); err != nil {
			return err
		}
	} else {
		fmt.Println(color.Header("Stored versions of " + abs))
		for _, snap := range snaps {
			fmt.Println(formatSnapshot(snap))
		}
	}
	if len(snaps) == 0 {
		return exitWith(1)
	}
	return nil
}

func formatSnapshot(s model.Snapshot) string {
	return fmt.Sprintf("%s  %-11s %s  %s",
		color.SnapshotID(string(s.ID)),
		color.Highlight(s.Label),
		color.Dim(s.CreatedAt.Local().Format(time.DateTime)),
		s.Author)
}

func init() {
	listCmd.Flags().StringVarP(&listFile, "file", "f", "", "the file whose versions to list")
	rootCmd.AddCommand(listCmd)
}
