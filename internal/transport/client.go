package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

const defaultTimeout = 30 * time.Second

// Client implements types.Transport against a hub's HTTP sync API.
// Every request carries the session's bearer token; an authentication
// rejection surfaces as an ordinary transport failure.
type Client struct {
	baseURL string
	session types.SessionProvider
	http    *http.Client
}

// NewClient builds a transport for the hub at baseURL. A nil httpClient
// gets a default with a 30s timeout.
func NewClient(baseURL string, session types.SessionProvider, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    httpClient,
	}
}

type pushRequest struct {
	Changes []types.ChangeRecord `json:"changes"`
}

type pushResponse struct {
	Pushed int `json:"pushed"`
}

type pullResponse struct {
	Changes []types.ChangeRecord `json:"changes"`
}

// Push sends the batch to POST /api/sync/push. An empty batch skips the
// network call entirely and reports success. The whole batch succeeds or
// fails together.
func (c *Client) Push(ctx context.Context, changes []types.ChangeRecord) types.PushResult {
	if len(changes) == 0 {
		return types.PushResult{Success: true}
	}

	body, err := json.Marshal(pushRequest{Changes: changes})
	if err != nil {
		return types.PushResult{Err: fmt.Errorf("encoding push batch: %w", err)}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/sync/push", bytes.NewReader(body))
	if err != nil {
		return types.PushResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.PushResult{Err: fmt.Errorf("push request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.PushResult{Err: httpError("push", resp)}
	}

	var decoded pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.PushResult{Err: fmt.Errorf("decoding push response: %w", err)}
	}
	return types.PushResult{Success: true, Count: decoded.Pushed}
}

// Pull requests GET /api/sync/pull, with ?since=<RFC3339> when since is
// non-zero. The zero since asks for everything the hub has.
func (c *Client) Pull(ctx context.Context, since time.Time) types.PullResult {
	path := "/api/sync/pull"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return types.PullResult{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.PullResult{Err: fmt.Errorf("pull request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.PullResult{Err: httpError("pull", resp)}
	}

	var decoded pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.PullResult{Err: fmt.Errorf("decoding pull response: %w", err)}
	}
	return types.PullResult{Success: true, Changes: decoded.Changes}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	creds, err := c.session.Credentials()
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	return req, nil
}

// httpError folds a non-2xx response into one error carrying the status
// and the (truncated) body text the hub returned.
func httpError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("%s rejected: %s", op, resp.Status)
	}
	return fmt.Errorf("%s rejected: %s: %s", op, resp.Status, text)
}
