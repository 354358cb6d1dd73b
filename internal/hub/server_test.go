package hub

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/hearth/internal/identity"
	"github.com/hearthkeep/hearth/pkg/types"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	issuer := identity.NewTokenIssuer("test-secret", time.Hour)
	srv := httptest.NewServer(NewServer(issuer, log.New(io.Discard, "", 0)).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func registerAndLogin(t *testing.T, srv *httptest.Server, household, name string) loginResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/auth/register", "", registerRequest{
		HouseholdID: household, Name: name, Passcode: "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/auth/login", "", loginRequest{
		HouseholdID: household, Name: name, Passcode: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	return login
}

func upsertChange(kind types.TableKind, id string, mod time.Time, title string) types.ChangeRecord {
	return types.ChangeRecord{
		Table: kind,
		ID:    id,
		Data: types.Record{
			types.FieldID:        id,
			types.FieldUpdatedAt: mod.Format(time.RFC3339),
			"title":              title,
		},
		UpdatedAt: mod,
	}
}

func TestAuth(t *testing.T) {
	t.Run("register then login issues a household token", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")
		assert.NotEmpty(t, login.Token)
		assert.Equal(t, "h1", login.HouseholdID)
		assert.NotEmpty(t, login.UserID)
		assert.NotEmpty(t, login.DeviceID)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		srv := testServer(t)
		registerAndLogin(t, srv, "h1", "ada")
		resp := postJSON(t, srv.URL+"/api/auth/register", "", registerRequest{
			HouseholdID: "h1", Name: "ada", Passcode: "hunter2hunter2",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("wrong passcode rejected", func(t *testing.T) {
		srv := testServer(t)
		registerAndLogin(t, srv, "h1", "ada")
		resp := postJSON(t, srv.URL+"/api/auth/login", "", loginRequest{
			HouseholdID: "h1", Name: "ada", Passcode: "not-the-passcode",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("short passcode rejected at registration", func(t *testing.T) {
		srv := testServer(t)
		resp := postJSON(t, srv.URL+"/api/auth/register", "", registerRequest{
			HouseholdID: "h1", Name: "ada", Passcode: "short",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("sync endpoints require a token", func(t *testing.T) {
		srv := testServer(t)
		resp := postJSON(t, srv.URL+"/api/sync/push", "", pushRequest{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp = getJSON(t, srv.URL+"/api/sync/pull", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp = getJSON(t, srv.URL+"/api/sync/pull", "garbage-token")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPushPull(t *testing.T) {
	t0 := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)

	pull := func(t *testing.T, srv *httptest.Server, token, since string) []types.ChangeRecord {
		t.Helper()
		url := srv.URL + "/api/sync/pull"
		if since != "" {
			url += "?since=" + since
		}
		resp := getJSON(t, url, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Changes []types.ChangeRecord `json:"changes"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Changes
	}

	t.Run("pushed changes come back on pull", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")

		resp := postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{
			Changes: []types.ChangeRecord{upsertChange(types.TableChores, "c1", t0, "dishes")},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pushed map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pushed))
		assert.Equal(t, 1, pushed["pushed"])

		changes := pull(t, srv, login.Token, "")
		require.Len(t, changes, 1)
		assert.Equal(t, "c1", changes[0].ID)
		assert.Equal(t, "dishes", changes[0].Data["title"])
	})

	t.Run("households are isolated", func(t *testing.T) {
		srv := testServer(t)
		ada := registerAndLogin(t, srv, "h1", "ada")
		bea := registerAndLogin(t, srv, "h2", "bea")

		resp := postJSON(t, srv.URL+"/api/sync/push", ada.Token, pushRequest{
			Changes: []types.ChangeRecord{upsertChange(types.TableChores, "c1", t0, "dishes")},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Empty(t, pull(t, srv, bea.Token, ""))
		assert.Len(t, pull(t, srv, ada.Token, ""), 1)
	})

	t.Run("newer stored change wins over a stale push", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")

		newer := upsertChange(types.TableChores, "c1", t0.Add(time.Hour), "newer")
		stale := upsertChange(types.TableChores, "c1", t0, "stale")

		resp := postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{Changes: []types.ChangeRecord{newer}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{Changes: []types.ChangeRecord{stale}})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		changes := pull(t, srv, login.Token, "")
		require.Len(t, changes, 1)
		assert.Equal(t, "newer", changes[0].Data["title"])
	})

	t.Run("tombstones replace live records", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")

		resp := postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{Changes: []types.ChangeRecord{
			upsertChange(types.TableGroceryItems, "g1", t0, "milk"),
			types.Tombstone(types.TableGroceryItems, "g1", "h1", t0.Add(time.Minute)),
		}})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		changes := pull(t, srv, login.Token, "")
		require.Len(t, changes, 1)
		assert.True(t, changes[0].IsTombstone())
	})

	t.Run("since filters on hub acceptance time", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")

		resp := postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{
			Changes: []types.ChangeRecord{upsertChange(types.TableChores, "c1", t0, "dishes")},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)
		assert.Empty(t, pull(t, srv, login.Token, future))

		past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano)
		assert.Len(t, pull(t, srv, login.Token, past), 1)
	})

	t.Run("untracked tables are dropped silently", func(t *testing.T) {
		srv := testServer(t)
		login := registerAndLogin(t, srv, "h1", "ada")

		resp := postJSON(t, srv.URL+"/api/sync/push", login.Token, pushRequest{
			Changes: []types.ChangeRecord{upsertChange(types.TableKind("hexes"), "x1", t0, "curse")},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, pull(t, srv, login.Token, ""))
	})
}
