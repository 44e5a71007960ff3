package vcenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
)

const pendingPath = "/rest/appliance/update/pending"

// Update summarises one pending appliance update.
type Update struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description struct {
		ID             string `json:"id"`
		DefaultMessage string `json:"default_message"`
	} `json:"description"`
	Priority       string `json:"priority"`
	Severity       string `json:"severity"`
	UpdateType     string `json:"update_type"`
	ReleaseDate    string `json:"release_date"`
	RebootRequired bool   `json:"reboot_required"`
	Size           int64  `json:"size"` // MB
}

// Client queries an appliance with an existing session.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient creates a Client; nil httpClient means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: BaseURL(baseURL), http: httpClient, log: log}
}

// PendingUpdates lists updates staged on the appliance. A 404 from the
// appliance means nothing is pending.
func (c *Client) PendingUpdates(ctx context.Context, cred auth.Credential) ([]Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pendingPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	cred.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get pending updates: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.log.Debug("no pending updates reported")
		return nil, nil
	case auth.IsAuthStatus(resp.StatusCode):
		return nil, &auth.Error{Provider: "vcenter", StatusCode: resp.StatusCode, Err: statusError(resp)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get pending updates: %w", statusError(resp))
	}

	var out struct {
		Value []Update `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pending updates: %w", err)
	}
	return out.Value, nil
}
