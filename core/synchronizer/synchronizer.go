package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/mainsync/core/logger"
	"github.com/dmitrymomot/mainsync/internal/guard"
	"github.com/dmitrymomot/mainsync/pkg/safe"
)

// Participant is anything drained once per tick, such as an event dispatcher or an invoker.
type Participant interface {
	Synchronize(ctx context.Context) error
}

// Rebinder is implemented by participants that bind to the goroutine draining them.
// Start calls Rebind on every participant before the first tick of a new loop,
// so a restarted loop may run on a different goroutine.
type Rebinder interface {
	Rebind()
}

// Synchronizer drives every registered participant once per tick, in registration order.
//
// Add and Remove only record the request; membership changes when the next tick
// starts, so participants can register or leave from inside their own Synchronize.
// The synchronizer does not own participants and never closes them.
type Synchronizer struct {
	mu      sync.Mutex
	active  []Participant
	members map[Participant]struct{}
	added   []Participant
	removed []Participant

	guard           *guard.Guard
	interval        time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// State management
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	// Observability metrics
	ticks    atomic.Uint64
	failed   atomic.Uint64
	panicked atomic.Uint64
	lastTick atomic.Int64
}

// Stats provides observability metrics for monitoring and debugging
type Stats struct {
	Ticks          uint64    // Completed ticks
	Failed         uint64    // Participant calls that returned an error
	Panicked       uint64    // Participant calls that panicked
	Participants   int       // Active participants
	PendingAdds    int       // Add requests waiting for the next tick
	PendingRemoves int       // Remove requests waiting for the next tick
	LastTick       time.Time // When the last tick finished, zero before the first
	IsRunning      bool      // Whether the tick loop is running
}

// New creates a synchronizer.
func New(opts ...Option) *Synchronizer {
	defaults := DefaultConfig()
	o := &options{
		tickInterval:    defaults.TickInterval,
		shutdownTimeout: defaults.ShutdownTimeout,
		logger:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Synchronizer{
		members:         make(map[Participant]struct{}),
		guard:           guard.New(false),
		interval:        o.tickInterval,
		shutdownTimeout: o.shutdownTimeout,
		logger:          o.logger,
	}
}

// NewFromConfig creates a Synchronizer from configuration.
// Additional options can override config values.
func NewFromConfig(cfg Config, opts ...Option) *Synchronizer {
	allOpts := append([]Option{
		WithTickInterval(cfg.TickInterval),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return New(allOpts...)
}

// Add requests p to be synchronized from the next tick on. Adding a member is a no-op.
// Add cancels a pending removal of p, so Remove or Clear followed by Add keeps p.
func (s *Synchronizer) Add(p Participant) error {
	if err := validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed = slices.DeleteFunc(s.removed, func(r Participant) bool { return r == p })
	s.added = append(s.added, p)
	return nil
}

// Remove requests p to leave at the next tick. Removing an unknown participant is a no-op.
// Additions requested before the same tick are applied first, so Add followed by
// Remove leaves p out entirely.
func (s *Synchronizer) Remove(p Participant) error {
	if err := validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed = append(s.removed, p)
	return nil
}

// Clear drops pending additions and requests removal of every active participant.
// Participants added after Clear and before the next tick are kept.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.added = nil
	s.removed = append(s.removed, s.active...)
}

// Contains reports whether p is an active participant. Pending requests are not considered.
func (s *Synchronizer) Contains(p Participant) bool {
	if validate(p) != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[p]
	return ok
}

// Count returns the number of active participants.
func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Tick applies pending membership changes and calls Synchronize on every active
// participant in order. The participant list is copied before the calls, so no
// lock is held while participants run. Failures are logged and do not stop the tick.
func (s *Synchronizer) Tick(ctx context.Context) error {
	if err := s.guard.Enter(); err != nil {
		if errors.Is(err, guard.ErrReentrant) {
			return ErrReentrantTick
		}
		return err
	}
	defer s.guard.Exit()

	participants := s.apply()
	tick := s.ticks.Load() + 1

	for _, p := range participants {
		err := safe.Call(func() error {
			return p.Synchronize(ctx)
		})
		if err == nil {
			continue
		}

		var pe *safe.PanicError
		if errors.As(err, &pe) {
			s.panicked.Add(1)
			s.logger.ErrorContext(ctx, "participant panicked",
				logger.Component("synchronizer"),
				logger.Participant(p),
				logger.Tick(tick),
				logger.Panic(pe.Value),
				logger.StackTrace(pe.Stack))
			continue
		}

		s.failed.Add(1)
		s.logger.ErrorContext(ctx, "participant failed",
			logger.Component("synchronizer"),
			logger.Participant(p),
			logger.Tick(tick),
			logger.Error(err))
	}

	s.ticks.Add(1)
	s.lastTick.Store(time.Now().UnixNano())
	return nil
}

// apply merges pending additions, then pending removals, and returns a copy of the active list.
func (s *Synchronizer) apply() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.added {
		if _, ok := s.members[p]; ok {
			continue
		}
		s.members[p] = struct{}{}
		s.active = append(s.active, p)
	}
	clear(s.added)
	s.added = s.added[:0]

	for _, p := range s.removed {
		if _, ok := s.members[p]; !ok {
			continue
		}
		delete(s.members, p)
		s.active = slices.DeleteFunc(s.active, func(a Participant) bool { return a == p })
	}
	clear(s.removed)
	s.removed = s.removed[:0]

	return slices.Clone(s.active)
}

// Start ticks every configured interval on the calling goroutine until ctx is
// cancelled or Stop is called. The first tick runs immediately.
// This is a blocking operation. Use Run() for errgroup pattern or call this in a goroutine.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.running.Store(true)
	defer func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.cancel = nil
		}
		s.mu.Unlock()
		s.running.Store(false)
		close(done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "tick loop started",
		logger.Component("synchronizer"),
		slog.Duration("tick_interval", s.interval))

	s.rebind()
	s.tickLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.Background(), "tick loop stopping",
				logger.Component("synchronizer"),
				logger.Tick(s.ticks.Load()))
			return ctx.Err()
		case <-ticker.C:
			s.tickLogged(ctx)
		}
	}
}

// rebind lets active and pending participants bind to the goroutine running the new loop.
func (s *Synchronizer) rebind() {
	s.mu.Lock()
	participants := slices.Concat(s.active, s.added)
	s.mu.Unlock()

	for _, p := range participants {
		if r, ok := p.(Rebinder); ok {
			r.Rebind()
		}
	}
}

func (s *Synchronizer) tickLogged(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		s.logger.ErrorContext(ctx, "tick failed",
			logger.Component("synchronizer"),
			logger.Error(err))
	}
}

// Stop cancels the tick loop and waits for the running tick to finish.
// Returns an error if the shutdown timeout is exceeded.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}

	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.InfoContext(context.Background(), "tick loop stopped cleanly",
			logger.Component("synchronizer"))
		return nil
	case <-timer.C:
		s.logger.WarnContext(context.Background(), "tick loop shutdown timeout exceeded",
			logger.Component("synchronizer"),
			slog.Duration("timeout", s.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, s.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the tick loop, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (s *Synchronizer) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Stats returns current statistics. It is safe to call at any time.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	participants := len(s.active)
	adds, removes := len(s.added), len(s.removed)
	s.mu.Unlock()

	var last time.Time
	if ns := s.lastTick.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return Stats{
		Ticks:          s.ticks.Load(),
		Failed:         s.failed.Load(),
		Panicked:       s.panicked.Load(),
		Participants:   participants,
		PendingAdds:    adds,
		PendingRemoves: removes,
		LastTick:       last,
		IsRunning:      s.running.Load(),
	}
}

// Healthcheck validates that the tick loop is operational.
// Returns nil if healthy, or an error describing the health issue.
//
// Health criteria:
//   - Tick loop must be running
//   - The last tick must have finished within ten tick intervals
//
// The returned error can be checked using errors.Is:
//
//	if errors.Is(err, synchronizer.ErrNotRunning) { ... }
//	if errors.Is(err, synchronizer.ErrStalled) { ... }
func (s *Synchronizer) Healthcheck(ctx context.Context) error {
	stats := s.Stats()

	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrNotRunning)
	}

	// A participant blocking the loop shows up as an old LastTick.
	if !stats.LastTick.IsZero() {
		if since := time.Since(stats.LastTick); since > 10*s.interval {
			return errors.Join(ErrHealthcheckFailed, ErrStalled,
				fmt.Errorf("last tick %s ago", since.Round(time.Millisecond)))
		}
	}

	return nil
}

func validate(p Participant) error {
	if p == nil {
		return ErrNilParticipant
	}
	if !reflect.TypeOf(p).Comparable() {
		return ErrParticipantNotComparable
	}
	return nil
}
