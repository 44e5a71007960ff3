package vcenter

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
)

// Poller checks for pending updates, keeping one session open across polls.
type Poller struct {
	provider auth.TokenProvider
	client   *Client
	interval time.Duration
	log      *zap.Logger

	cred auth.Credential
}

// NewPoller creates a Poller. An interval of zero makes Run poll once.
func NewPoller(provider auth.TokenProvider, client *Client, interval time.Duration, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{provider: provider, client: client, interval: interval, log: log}
}

// Poll performs one check. A rejected session is replaced once.
func (p *Poller) Poll(ctx context.Context) ([]Update, error) {
	if err := p.login(ctx, false); err != nil {
		return nil, err
	}

	updates, err := p.client.PendingUpdates(ctx, p.cred)
	var ae *auth.Error
	if !errors.As(err, &ae) {
		return updates, err
	}

	p.log.Info("session rejected, logging in again", zap.Int("status", ae.StatusCode))
	if err := p.login(ctx, true); err != nil {
		return nil, err
	}
	return p.client.PendingUpdates(ctx, p.cred)
}

// Run calls fn with the result of every successful poll until ctx is done.
// Failed polls are logged and retried at the next tick; with a zero interval
// the single poll's error is returned.
func (p *Poller) Run(ctx context.Context, fn func([]Update)) error {
	if p.interval <= 0 {
		updates, err := p.Poll(ctx)
		if err != nil {
			return err
		}
		fn(updates)
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		updates, err := p.Poll(ctx)
		switch {
		case err == nil:
			fn(updates)
		case ctx.Err() != nil:
			return nil
		default:
			p.log.Warn("update poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) login(ctx context.Context, force bool) error {
	if !force && p.cred.Token != "" && !p.cred.Expired(time.Now()) {
		return nil
	}
	cred, err := p.provider.Token(ctx)
	if err != nil {
		p.cred = auth.Credential{}
		return err
	}
	p.cred = cred
	return nil
}
