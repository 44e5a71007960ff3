// Package vcenter talks to the vCenter appliance REST API: it opens
// sessions and reports pending software updates.
package vcenter

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandeepkandula/archivesync/auth"
)

const sessionPath = "/rest/com/vmware/cis/session"

// BaseURL turns a bare host name into an https URL.
func BaseURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + strings.TrimSuffix(host, "/")
}

// NewHTTPClient returns a client for appliances that often run with
// self-signed certificates; insecure disables verification.
func NewHTTPClient(insecure bool, timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// StatusError is a non-2xx appliance response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vcenter: status %d: %s", e.StatusCode, e.Body)
}

// SessionProvider opens API sessions with basic authentication.
type SessionProvider struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

var _ auth.TokenProvider = (*SessionProvider)(nil)

// NewSessionProvider creates a SessionProvider for the appliance at baseURL.
func NewSessionProvider(baseURL, username, password string, client *http.Client) *SessionProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &SessionProvider{baseURL: BaseURL(baseURL), username: username, password: password, client: client}
}

func (p *SessionProvider) Token(ctx context.Context) (auth.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+sessionPath, nil)
	if err != nil {
		return auth.Credential{}, err
	}
	req.SetBasicAuth(p.username, p.password)

	resp, err := p.client.Do(req)
	if err != nil {
		return auth.Credential{}, &auth.Error{Provider: "vcenter", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return auth.Credential{}, &auth.Error{Provider: "vcenter", StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var out struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return auth.Credential{}, &auth.Error{Provider: "vcenter", Err: fmt.Errorf("decode session: %w", err)}
	}
	if out.Value == "" {
		return auth.Credential{}, &auth.Error{Provider: "vcenter", Err: fmt.Errorf("empty session id")}
	}
	return auth.Session(out.Value), nil
}

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
