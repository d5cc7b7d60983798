package bot

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
)

const (
	initialBackoff = time.Second
	idleDelay      = 250 * time.Millisecond
)

// Poller pulls updates and feeds them to the dispatcher one at a time
type Poller struct {
	messenger  ports.Messenger
	dispatcher *Dispatcher
	timeout    time.Duration
	backoff    *backoff.ExponentialBackOff
	idle       time.Duration

	// cursor is the id of the last fully dispatched update
	cursor int
}

// NewPoller creates a poller that long-polls for up to timeout and backs
// off on transport errors up to maxBackoff.
func NewPoller(messenger ports.Messenger, dispatcher *Dispatcher, timeout, maxBackoff time.Duration) *Poller {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	if maxBackoff > 0 {
		b.MaxInterval = maxBackoff
	}
	if b.InitialInterval > b.MaxInterval {
		b.InitialInterval = b.MaxInterval
	}
	b.Reset()

	return &Poller{
		messenger:  messenger,
		dispatcher: dispatcher,
		timeout:    timeout,
		backoff:    b,
		idle:       idleDelay,
	}
}

// Cursor returns the id of the last dispatched update
func (p *Poller) Cursor() int {
	return p.cursor
}

// Run polls until ctx is cancelled. Transport and dispatch failures are
// logged and retried, they never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("timeout", p.timeout).Msg("bot poller started")
	defer log.Info().Int("cursor", p.cursor).Msg("bot poller stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := p.pollOnce(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			wait = p.backoff.NextBackOff()
			observability.BotPollErrors.Inc()
			log.Warn().Err(err).Dur("backoff", wait).Int("cursor", p.cursor).Msg("bot poll failed")
		case n == 0:
			p.backoff.Reset()
			wait = p.idle
		default:
			p.backoff.Reset()
		}

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// pollOnce fetches one batch strictly after the cursor and dispatches it in
// order. The cursor moves past an update only once it has been dispatched.
func (p *Poller) pollOnce(ctx context.Context) (int, error) {
	updates, err := p.messenger.Updates(ctx, p.cursor+1, p.timeout)
	if err != nil {
		return 0, err
	}

	for _, update := range updates {
		if update.UpdateID <= p.cursor {
			continue
		}
		if err := p.dispatcher.Dispatch(ctx, update); err != nil {
			return 0, err
		}
		p.cursor = update.UpdateID
	}

	return len(updates), nil
}
