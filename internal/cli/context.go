package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/config"
	"github.com/savify/savify/pkg/logging"
	"github.com/savify/savify/pkg/pathutil"
)

const noFileMessage = `No file specified. Use the --file flag to input a file. Run "savify --help" for more info.`

// fileArg returns the file named by --file, else the first positional argument.
func fileArg(flag string, args []string) string {
	if flag != "" {
		return flag
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// requireExistingFile reports a missing file and fails with exit code 1.
func requireExistingFile(path string) (string, error) {
	abs, err := pathutil.Normalize(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		fmt.Printf("%s does not exist\n", abs)
		return "", exitWith(1)
	}
	return abs, nil
}

// openSession discovers the workspace around the current directory and opens
// it. With create, a workspace is initialized in the current directory when
// none exists.
func openSession(cmd *cobra.Command, create bool) (*workspace.Session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot get current directory: %w", err)
	}

	var ws *workspace.Workspace
	if create {
		ws, _, err = workspace.DiscoverOrInit(cwd)
	} else {
		ws, err = workspace.Discover(cwd)
	}
	if err != nil {
		return nil, err
	}

	if err := applyLoggingConfig(ws.Root); err != nil {
		return nil, err
	}

	s, err := workspace.Open(cmd.Context(), ws, logging.Global())
	if err != nil {
		return nil, err
	}
	if s.RepoCreated && !jsonOutput {
		fmt.Printf("Created new git repository at %s\n", ws.Root)
	}
	return s, nil
}

// applyLoggingConfig configures the global logger from config.yaml unless
// --log-level was given.
func applyLoggingConfig(root string) error {
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Global()
	if format, err := logging.ParseFormat(cfg.Logging.Format); err == nil {
		log.SetFormat(format)
	}
	if logLevel == "" && cfg.Logging.Level != "" {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}
	return nil
}
