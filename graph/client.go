// Package graph lists and resolves SharePoint document libraries through
// Microsoft Graph.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	refreshMargin = time.Minute
)

// StatusError is a non-2xx Graph response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph: status %d: %s", e.StatusCode, e.Body)
}

// Client issues authenticated Graph requests.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	tokens  auth.TokenProvider
}

// NewClient creates a Client. Empty baseURL means DefaultBaseURL, nil
// httpClient means http.DefaultClient and nil log discards output.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient, log: log}
}

// WithTokens makes c replace a credential that expires within refreshMargin
// with one from p before each request.
func (c *Client) WithTokens(p auth.TokenProvider) *Client {
	c.tokens = p
	return c
}

// SiteID resolves a site reference such as
// "contoso.sharepoint.com:/sites/images" to its id.
func (c *Client) SiteID(ctx context.Context, cred auth.Credential, site string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, cred, c.baseURL+"/sites/"+site, &out); err != nil {
		return "", fmt.Errorf("get site id: %w", err)
	}
	return out.ID, nil
}

// DriveID finds the document library called name within a site.
func (c *Client) DriveID(ctx context.Context, cred auth.Credential, siteID, name string) (string, error) {
	var out struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := c.getJSON(ctx, cred, c.baseURL+"/sites/"+siteID+"/drives", &out); err != nil {
		return "", fmt.Errorf("get drive id: %w", err)
	}
	for _, d := range out.Value {
		if d.Name == name {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("drive %q not found", name)
}

func (c *Client) getJSON(ctx context.Context, cred auth.Credential, url string, v any) error {
	if c.tokens != nil && cred.Expired(time.Now().Add(refreshMargin)) {
		fresh, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		cred = fresh
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	cred.Apply(req)

	c.log.Debug("graph request", zap.String("url", url))
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if auth.IsAuthStatus(resp.StatusCode) {
			return &auth.Error{Provider: "graph", StatusCode: resp.StatusCode, Err: se}
		}
		return se
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
