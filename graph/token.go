package graph

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sandeepkandula/archivesync/auth"
)

const (
	DefaultAuthority = "https://login.microsoftonline.com"
	DefaultScope     = "https://graph.microsoft.com/.default"
)

// TokenConfig identifies an app registration using the client credentials
// grant.
type TokenConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Authority    string   // defaults to DefaultAuthority
	Scopes       []string // defaults to DefaultScope
}

// TokenProvider acquires Graph bearer tokens for an app registration and
// reuses each token until it is about to expire.
type TokenProvider struct {
	conf   *clientcredentials.Config
	client *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

var _ auth.TokenProvider = (*TokenProvider)(nil)

// NewTokenProvider creates a TokenProvider; a nil client means
// http.DefaultClient.
func NewTokenProvider(cfg TokenConfig, client *http.Client) *TokenProvider {
	authority := cfg.Authority
	if authority == "" {
		authority = DefaultAuthority
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	return &TokenProvider{
		conf: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimSuffix(authority, "/") + "/" + cfg.TenantID + "/oauth2/v2.0/token",
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
	}
}

func (p *TokenProvider) Token(ctx context.Context) (auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tok.Valid() {
		return auth.Bearer(p.tok.AccessToken, p.tok.Expiry), nil
	}

	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.conf.Token(ctx)
	if err != nil {
		ae := &auth.Error{Provider: "graph", Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
		return auth.Credential{}, ae
	}
	p.tok = tok
	return auth.Bearer(tok.AccessToken, tok.Expiry), nil
}
