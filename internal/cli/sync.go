package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hearthkeep/hearth/internal/engine"
	"github.com/hearthkeep/hearth/internal/identity"
	"github.com/hearthkeep/hearth/internal/sqlite"
	"github.com/hearthkeep/hearth/internal/transport"
	"github.com/hearthkeep/hearth/pkg/types"
)

func newSyncCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local records with the household hub",
		Long:  "Run one sync cycle: push local changes to the hub, pull what other\ndevices changed, and merge the result into the local database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "ignore the watermark and resync everything")
	return cmd
}

func runSync(cmd *cobra.Command, full bool) error {
	hubURL, err := resolveHubURL()
	if err != nil {
		return exitError(cmd, exitUserError, err.Error())
	}
	dataDir, err := resolveDataDir()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	session := identity.LoadSession(dataDir)
	if !session.Authenticated() {
		return exitError(cmd, exitUserError, "not logged in: run `hearth login` first")
	}

	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer backend.Detach()

	orch := engine.NewOrchestrator(
		backend,
		backend,
		transport.NewClient(hubURL, session, nil),
		session,
		backend.SyncState(),
		engine.Options{Logger: syncLogger(dataDir)},
	)

	result := orch.PerformSync(cmd.Context(), full)
	if result.Err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("sync failed: %s", result.Err))
	}

	if flags.jsonMode {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"pushed":    result.Pushed,
			"pulled":    result.Pulled,
			"applied":   result.Applied,
			"conflicts": result.Conflicts,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced: pushed %d, pulled %d, applied %d, conflicts %d\n",
		result.Pushed, result.Pulled, result.Applied, result.Conflicts)
	return nil
}

// syncLogger writes cycle logs to stderr and a rotated file under the
// data directory, so per-record warnings survive past the terminal.
func syncLogger(dataDir string) *log.Logger {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "logs", "sync.log"),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
	}
	return log.New(io.MultiWriter(os.Stderr, rotated), "[sync] ", log.LstdFlags)
}
