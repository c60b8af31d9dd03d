// Package passphrase implements the single-flight unlock-passphrase
// acquisition state machine: Empty -> Pending -> Held, with Pending ->
// Empty on connection drop or client refusal.
package passphrase

import (
	"context"
	"sync"

	"github.com/Connoropolous/lair-keystore/internal/obslog"
	"github.com/Connoropolous/lair-keystore/lairerr"
)

type state int

const (
	stateEmpty state = iota
	statePending
	stateHeld
)

// Requester asks the currently connected client for the unlock passphrase
// and returns its answer, or an error if the client refuses or the
// connection dies first. The service actor supplies this by wiring it to
// an ipc.Conn's RequestUnlockPassphrase event/reply.
type Requester func(ctx context.Context) (string, error)

// Gate memoises the unlock passphrase for the process lifetime, acquiring
// it at most once regardless of how many concurrent callers ask.
type Gate struct {
	mu      sync.Mutex
	state   state
	value   string
	waiters []chan result
	logger  *obslog.Logger
}

type result struct {
	value string
	err   error
}

// NewGate returns a Gate in the Empty state.
func NewGate() *Gate {
	return &Gate{logger: obslog.New("passphrase", "Gate")}
}

// Get returns the cached passphrase if already Held; otherwise it invokes
// request exactly once (even under concurrent callers) and fans the result
// out to every waiter. On failure or connection drop, the gate resets to
// Empty so a later call retries on whichever connection is active then.
func (g *Gate) Get(ctx context.Context, request Requester) (string, error) {
	g.mu.Lock()
	switch g.state {
	case stateHeld:
		value := g.value
		g.mu.Unlock()
		return value, nil
	case statePending:
		ch := make(chan result, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()
		select {
		case r := <-ch:
			return r.value, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.state = statePending
	g.mu.Unlock()

	g.logger.Debug("requesting unlock passphrase from client")
	value, err := request(ctx)

	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	if err != nil {
		g.state = stateEmpty
		g.logger.WithError(err, "passphrase_refused", "request").Warn("passphrase acquisition failed")
		g.mu.Unlock()
		wrapped := lairerr.Wrap(lairerr.PassphraseRefused, "client refused passphrase request", err)
		for _, w := range waiters {
			w <- result{err: wrapped}
		}
		return "", wrapped
	}

	g.state = stateHeld
	g.value = value
	g.mu.Unlock()

	for _, w := range waiters {
		w <- result{value: value}
	}
	return value, nil
}

// Reset returns the gate to Empty, for use when the connection that was
// Pending drops before answering.
func (g *Gate) Reset() {
	g.mu.Lock()
	if g.state != statePending {
		g.mu.Unlock()
		return
	}
	waiters := g.waiters
	g.waiters = nil
	g.state = stateEmpty
	g.mu.Unlock()

	err := lairerr.New(lairerr.PassphraseRefused, "connection dropped before passphrase was provided")
	for _, w := range waiters {
		w <- result{err: err}
	}
}
