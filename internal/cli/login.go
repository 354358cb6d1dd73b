package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/identity"
	"github.com/hearthkeep/hearth/pkg/types"
)

type loginFlags struct {
	household string
	name      string
	passcode  string
	register  bool
}

func newLoginCmd() *cobra.Command {
	var lf loginFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the household hub",
		Long:  "Authenticate against the household hub and store the session locally.\nWith --register, create the member on the hub first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, lf)
		},
	}
	cmd.Flags().StringVar(&lf.household, "household", "", "household identifier")
	cmd.Flags().StringVar(&lf.name, "name", "", "member name")
	cmd.Flags().StringVar(&lf.passcode, "passcode", "", "member passcode")
	cmd.Flags().BoolVar(&lf.register, "register", false, "register the member before logging in")
	cmd.MarkFlagRequired("household")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("passcode")
	return cmd
}

func runLogin(cmd *cobra.Command, lf loginFlags) error {
	hubURL, err := resolveHubURL()
	if err != nil {
		return exitError(cmd, exitUserError, err.Error())
	}
	dataDir, err := resolveDataDir()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	client := &http.Client{Timeout: 15 * time.Second}
	base := strings.TrimRight(hubURL, "/")

	if lf.register {
		if err := hubPost(client, base+"/api/auth/register", map[string]string{
			"householdId": lf.household,
			"name":        lf.name,
			"passcode":    lf.passcode,
		}, nil); err != nil {
			return exitError(cmd, exitUserError, fmt.Sprintf("registration failed: %s", err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registered", lf.name, "in household", lf.household)
	}

	var login struct {
		Token       string    `json:"token"`
		ExpiresAt   time.Time `json:"expiresAt"`
		UserID      string    `json:"userId"`
		HouseholdID string    `json:"householdId"`
		DeviceID    string    `json:"deviceId"`
	}
	if err := hubPost(client, base+"/api/auth/login", map[string]string{
		"householdId": lf.household,
		"name":        lf.name,
		"passcode":    lf.passcode,
		"deviceId":    currentDeviceID(dataDir),
	}, &login); err != nil {
		return exitError(cmd, exitUserError, fmt.Sprintf("login failed: %s", err))
	}

	session := identity.LoadSession(dataDir)
	if err := session.Save(types.Credentials{
		Token:       login.Token,
		HouseholdID: login.HouseholdID,
		UserID:      login.UserID,
		DeviceID:    login.DeviceID,
	}, login.ExpiresAt); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("save session: %s", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged in as", lf.name, "until", login.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// currentDeviceID reuses the device identity from an earlier session so
// the hub sees one device per installation, not one per login.
func currentDeviceID(dataDir string) string {
	session := identity.LoadSession(dataDir)
	if creds, err := session.Credentials(); err == nil {
		return creds.DeviceID
	}
	return ""
}

// hubPost sends a JSON body and decodes a JSON response. Non-2xx
// responses surface as errors carrying the hub's message.
func hubPost(client *http.Client, url string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored hub session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := resolveDataDir()
			if err != nil {
				return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
			}
			if err := identity.LoadSession(dataDir).Clear(); err != nil {
				return exitError(cmd, exitSysError, fmt.Sprintf("clear session: %s", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
