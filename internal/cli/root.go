// Package cli implements the hearth command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/paths"
	"github.com/hearthkeep/hearth/pkg/hearth"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	hubURL    string
	jsonMode  bool
}

var flags rootFlags

// configValues holds settings loaded from config.yaml by the persistent
// pre-run, so subcommands see flag > config > env precedence.
var configValues struct {
	dataDir string
	hubURL  string
}

// NewRootCmd creates the top-level "hearth" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "hearth",
		Short:   "Hearth keeps a household's records in sync across devices",
		Long:    "Hearth stores household records (chores, groceries, recipes, and more)\nin a local database and reconciles them with the household hub on demand.",
		Version: hearth.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := resolveConfigDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			configValues.dataDir = cfg.GetString(cfgKeyDataDir)
			configValues.hubURL = cfg.GetString(cfgKeyHubURL)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.hearth-db)")
	root.PersistentFlags().StringVar(&flags.hubURL, "hub", "", "household hub URL (default: from config.yaml)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServeCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	godotenv.Load()

	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// resolveConfigDir returns the config directory from flag, env, or
// platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}

// resolveDataDir returns the data directory from flag, config, env, or
// default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flags.dataDir, configValues.dataDir)
}

// resolveHubURL returns the hub URL from flag or config.
func resolveHubURL() (string, error) {
	if flags.hubURL != "" {
		return flags.hubURL, nil
	}
	if configValues.hubURL != "" {
		return configValues.hubURL, nil
	}
	return "", fmt.Errorf("no hub configured: pass --hub or set hub_url in config.yaml")
}

// exitError prints the error to stderr and exits with the given code.
func exitError(cmd *cobra.Command, code int, msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
	return nil // unreachable
}
