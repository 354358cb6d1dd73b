package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/identity"
	"github.com/hearthkeep/hearth/internal/sqlite"
	"github.com/hearthkeep/hearth/pkg/types"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and sync state",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	session := identity.LoadSession(dataDir)
	loggedIn := session.Authenticated()
	var householdID string
	if creds, err := session.Credentials(); err == nil {
		householdID = creds.HouseholdID
	}

	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer backend.Detach()

	state, err := backend.SyncState().Load(cmd.Context())
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("read sync state: %s", err))
	}

	if flags.jsonMode {
		out := map[string]any{
			"loggedIn":  loggedIn,
			"household": householdID,
		}
		if !state.NeverSynced() {
			out["lastSynced"] = state.Watermark.Format(time.RFC3339)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}

	if loggedIn {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in to household", householdID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
	}
	if state.NeverSynced() {
		fmt.Fprintln(cmd.OutOrStdout(), "Never synced")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Last synced:", state.Watermark.Local().Format(time.RFC1123))
	}
	return nil
}
