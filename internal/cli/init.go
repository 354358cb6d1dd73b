package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hearthkeep/hearth/internal/sqlite"
	"github.com/hearthkeep/hearth/pkg/types"
)

// configFile is the structure written to config.yaml when init persists
// explicit choices.
type configFile struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir,omitempty"`
	HubURL  string `yaml:"hub_url,omitempty"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize hearth storage",
		Long:  "Create configuration and data directories, then initialize the local database.\nDirectories passed by flag are recorded in config.yaml for later runs.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve config directory: %s", err))
	}
	dataDir, err := resolveDataDir()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	cfg := types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	}

	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("initialize storage: %s", err))
	}
	if err := backend.Detach(); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("finalize storage: %s", err))
	}

	// Record explicit flag choices so later runs find the same setup
	// without flags.
	if flags.dataDir != "" || flags.hubURL != "" {
		if err := writeConfig(configDir, dataDir); err != nil {
			return exitError(cmd, exitSysError, fmt.Sprintf("write config: %s", err))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Hearth initialized successfully")
	return nil
}

func writeConfig(configDir, dataDir string) error {
	hubURL := flags.hubURL
	if hubURL == "" {
		hubURL = configValues.hubURL
	}

	data, err := yaml.Marshal(&configFile{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		HubURL:  hubURL,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, configFileExt), data, 0o644)
}
