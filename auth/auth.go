//go:generate mockgen -destination mock_auth/mock_auth.go github.com/sandeepkandula/archivesync/auth TokenProvider

// Package auth defines the credential handed to remote listers and sinks, and
// the TokenProvider interface implemented once per identity system.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// SessionHeader carries an appliance session id.
const SessionHeader = "vmware-api-session-id"

// Scheme selects how a Credential is attached to a request.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeBearer
	SchemeSession
)

func (s Scheme) String() string {
	switch s {
	case SchemeBearer:
		return "bearer"
	case SchemeSession:
		return "session"
	default:
		return "none"
	}
}

// Credential is an opaque, pre-validated token. The zero value attaches nothing.
type Credential struct {
	Scheme Scheme
	Token  string
	Expiry time.Time // zero means unknown
}

// Bearer returns an OAuth2 bearer credential.
func Bearer(token string, expiry time.Time) Credential {
	return Credential{Scheme: SchemeBearer, Token: token, Expiry: expiry}
}

// Session returns an appliance session credential.
func Session(id string) Credential {
	return Credential{Scheme: SchemeSession, Token: id}
}

// Apply sets the credential's header on req.
func (c Credential) Apply(req *http.Request) {
	switch c.Scheme {
	case SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case SchemeSession:
		req.Header.Set(SessionHeader, c.Token)
	}
}

// Expired reports whether the credential has a known expiry that has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// String never prints the token.
func (c Credential) String() string {
	return fmt.Sprintf("credential(%s)", c.Scheme)
}

// TokenProvider acquires a credential for one identity system.
type TokenProvider interface {
	Token(ctx context.Context) (Credential, error)
}

// Error reports a rejected or unobtainable credential.
type Error struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s auth failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s auth failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuthStatus reports whether an HTTP status means the credential was refused.
func IsAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
