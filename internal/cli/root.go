// Package cli implements the savify command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "savify",
		Short: "savify - keep every version of your files",
		Long: `savify tracks versions of individual files without making you use git.

Every tracked file gets its own history line inside the git repository of the
current directory. Commit a file to store a version, list its versions,
restore an old one or delete them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupAmbient,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func setupAmbient(cmd *cobra.Command, args []string) error {
	color.Init(noColor)
	if noColor {
		color.Disable()
	}
	if logLevel == "" {
		return nil
	}
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logging.Global().SetLevel(level)
	return nil
}

// exitError ends the process with code after its message has already been
// printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// exitWith signals a non-zero exit without printing anything further.
func exitWith(code int) error { return &exitError{code: code} }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(rootCmd, os.Args[1:])
}

func run(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmtErr("%v", err)
	return 1
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "savify: "
	if color.Enabled() {
		prefix = color.Error("savify:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
