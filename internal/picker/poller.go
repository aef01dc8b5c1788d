package picker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/constants"
)

// State is the lifecycle state of a Poller.
type State string

// Poller states. Completed, Failed and Cancelled are terminal.
const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// SessionGetter fetches a session; *Client satisfies it.
type SessionGetter interface {
	GetSession(ctx context.Context, id string) (*Session, error)
}

// CredentialClearer forgets the stored credential.
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

// Poller polls a picking session until the user has finished picking, an
// error occurs or it is cancelled. Exactly one of the callbacks passed to
// Start runs per loop, and none runs after Cancel.
type Poller struct {
	getter          SessionGetter
	clearer         CredentialClearer
	defaultInterval time.Duration
	now             func() time.Time
	logger          zerolog.Logger

	mu     sync.Mutex
	state  State
	run    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithDefaultInterval sets the interval used when the session carries no
// recommendation.
func WithDefaultInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.defaultInterval = d
		}
	}
}

// WithPollerLogger sets the logger.
func WithPollerLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// WithPollerClock overrides the clock used for the session timeout.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// NewPoller creates an idle poller. clearer may be nil.
func NewPoller(getter SessionGetter, clearer CredentialClearer, opts ...PollerOption) *Poller {
	p := &Poller{
		getter:          getter,
		clearer:         clearer,
		defaultInterval: constants.DefaultPollInterval,
		now:             time.Now,
		logger:          zerolog.Nop(),
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling sessionID on a background goroutine. It returns
// ErrAlreadyPolling if a loop is still running; a finished poller can be
// started again.
func (p *Poller) Start(sessionID string, onComplete func(*Session), onError func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePolling {
		return ErrAlreadyPolling
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.run++
	p.state = StatePolling
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.run, p.done, sessionID, onComplete, onError)
	return nil
}

// Cancel stops a running loop. No GetSession call starts and no callback
// runs after Cancel returns; a result still in flight is discarded.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePolling {
		return
	}
	p.state = StateCancelled
	p.cancel()
	p.logger.Debug().Msg("polling cancelled")
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed when the current loop goroutine exits. It is nil before
// the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) loop(ctx context.Context, run uint64, done chan struct{}, sessionID string, onComplete func(*Session), onError func(error)) {
	defer close(done)

	log := p.logger.With().Str("session_id", sessionID).Logger()
	// timeoutIn counts down between polls, so the deadline is fixed by the
	// first response that reports one.
	var deadline time.Time
	polls := 0

	for {
		if ctx.Err() != nil {
			return
		}

		polls++
		session, err := p.getter.GetSession(ctx, sessionID)
		if err != nil {
			p.finish(run, StateFailed, func() {
				log.Warn().Err(err).Int("polls", polls).Msg("polling failed")
				if IsAuthError(err) && p.clearer != nil {
					if clearErr := p.clearer.Clear(context.Background()); clearErr != nil {
						log.Error().Err(clearErr).Msg("failed to clear credential")
					}
				}
				if onError != nil {
					onError(err)
				}
			})
			return
		}

		if session.MediaItemsSet {
			p.finish(run, StateCompleted, func() {
				log.Info().Int("polls", polls).Msg("user finished picking")
				if onComplete != nil {
					onComplete(session)
				}
			})
			return
		}

		if timeout := session.PollingConfig.TimeoutIn.Std(); deadline.IsZero() && timeout > 0 {
			deadline = p.now().Add(timeout)
		}
		if !deadline.IsZero() && !p.now().Before(deadline) {
			p.finish(run, StateFailed, func() {
				log.Warn().Time("deadline", deadline).Msg("picking session timed out")
				if onError != nil {
					onError(ErrSessionTimedOut)
				}
			})
			return
		}

		interval := session.PollingConfig.PollInterval.Std()
		if interval <= 0 {
			interval = p.defaultInterval
		}
		log.Debug().Dur("interval", interval).Int("polls", polls).Msg("items not set yet")

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// finish moves to a terminal state and runs notify outside the lock. It
// does nothing if run was cancelled first, including when a later Start
// has already replaced it.
func (p *Poller) finish(run uint64, state State, notify func()) {
	p.mu.Lock()
	if p.run != run || p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.cancel()
	p.mu.Unlock()

	notify()
}

// WaitForSession polls sessionID until the user finishes picking and
// returns the final session. Cancelling ctx cancels the poller.
func WaitForSession(ctx context.Context, poller *Poller, sessionID string) (*Session, error) {
	type result struct {
		session *Session
		err     error
	}
	ch := make(chan result, 1)

	err := poller.Start(sessionID,
		func(s *Session) { ch <- result{session: s} },
		func(err error) { ch <- result{err: err} },
	)
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.session, r.err
	case <-ctx.Done():
		poller.Cancel()
		// A callback may have won the race with Cancel.
		select {
		case r := <-ch:
			return r.session, r.err
		default:
			return nil, ctx.Err()
		}
	}
}
