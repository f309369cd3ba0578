package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage savify configuration",
	Long: `Manage savify configuration stored in .savify/config.yaml.

Configuration keys:
  default_line    - Branch HEAD rests on between commands (recorded at init)
  index.driver    - Index store: sqlite (default) or json
  author.name     - Commit author name (default: global git identity)
  author.email    - Commit author email
  remote.name     - Push remote name (set with "savify remote")
  remote.url      - Push remote url
  logging.level   - debug, info, warn, error
  logging.format  - text or json`,
	DisableFlagsInUseLine: true,
}

func loadWorkspaceConfig() (string, *config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("cannot get current directory: %w", err)
	}
	ws, err := workspace.Discover(cwd)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(ws.Root)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}
	return ws.Root, cfg, nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, cfg, err := loadWorkspaceConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			values := make(map[string]string, len(config.Keys))
			for _, k := range config.Keys {
				values[k], _ = cfg.Get(k)
			}
			return outputJSON(values)
		}

		fmt.Println("# savify configuration")
		fmt.Printf("# Location: %s\n\n", config.Path(root))
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in .savify/config.yaml.

Examples:
  savify config set author.name "Ada Lovelace"
  savify config set logging.level debug
  savify config set index.driver json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, cfg, err := loadWorkspaceConfig()
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		if err := config.Save(root, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadWorkspaceConfig()
		if err != nil {
			return err
		}
		key := args[0]
		value, err := cfg.Get(key)
		if err != nil {
			return fmt.Errorf("get config: %w", err)
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", key)
			return nil
		}
		fmt.Println(strings.TrimRight(value, "\n"))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
