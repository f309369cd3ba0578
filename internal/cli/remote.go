package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/progress"
)

var (
	remoteName string
	remoteURL  string
)

var remoteCmd = &cobra.Command{
	Use:   "remote [name] [url]",
	Short: "Configure the remote every history line is pushed to",
	Long: `Configure the remote every history line is pushed to.

The remote is stored in .savify/config.yaml and in the git repository's
configuration. Setting a remote again replaces the previous one.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := remoteName, remoteURL
		if name == "" && len(args) > 0 {
			name = args[0]
			args = args[1:]
		}
		if url == "" && len(args) > 0 {
			url = args[0]
		}
		if name == "" || url == "" {
			return errclass.ErrNameInvalid.WithMessage("both a remote name and a url are required")
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		remote := model.Remote{Name: name, URL: url}
		if err := s.Engine.SetRemote(cmd.Context(), remote); err != nil {
			return err
		}
		s.Config.Remote = &remote
		if err := s.SaveConfig(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		if jsonOutput {
			return outputJSON(remote)
		}
		fmt.Printf("Remote %s set to %s\n", color.Highlight(name), url)
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push every history line to the configured remote",
	Long: `Push every history line to the configured remote.

Each tracked file's line is pushed as a branch of the same name. A line that
fails to push does not stop the others; the exit status is 1 if any failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if errors.Is(err, workspace.ErrNoWorkspace) {
			return errclass.ErrRemoteNotConfigured.WithMessage("no remote configured; run `savify remote <name> <url>` first")
		}
		if err != nil {
			return err
		}
		defer s.Close()

		cb := progress.Noop
		if !jsonOutput {
			cb = progress.NewPrinter(os.Stdout).Callback()
		}
		report, err := s.Engine.PushAll(cmd.Context(), s.Config.Remote, cb)
		if report == nil {
			return err
		}

		if jsonOutput {
			if jerr := outputJSON(report); jerr != nil {
				return jerr
			}
		} else {
			lines := make([]string, 0, len(report.Failed))
			for line := range report.Failed {
				lines = append(lines, line)
			}
			sort.Strings(lines)
			for _, line := range lines {
				fmt.Printf("%s %s: %s\n", color.Error("failed"), line, report.Failed[line])
			}
			fmt.Printf("Pushed %d line(s) to %s\n", len(report.Pushed), report.Remote)
		}
		return err
	},
}

func init() {
	remoteCmd.Flags().StringVar(&remoteName, "name", "", "the name of the remote")
	remoteCmd.Flags().StringVar(&remoteURL, "url", "", "the url of the remote")
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(pushCmd)
}
