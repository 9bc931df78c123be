// Package simulator drives the price book on a fixed schedule and marks
// portfolios to the new prices.
package simulator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/portfolio"
)

// DefaultInterval is the time between two ticks.
const DefaultInterval = 5 * time.Second

var (
	ErrAlreadyRunning = errors.New("simulator is already running")
	ErrNotRunning     = errors.New("simulator is not running")
)

// State is the lifecycle state of a Simulator.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Revaluer marks its positions to the prices in lookup.
type Revaluer interface {
	RevalueAll(lookup portfolio.PriceLookup)
}

// TickListener is called after every tick with the new quotes.
type TickListener func(quotes []market.Quote)

// Simulator ticks a PriceBook and revalues every registered Revaluer after each tick.
type Simulator struct {
	logger *zap.Logger
	book   *market.PriceBook

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	revaluers []Revaluer
	listeners []TickListener

	ticks atomic.Uint64
}

// New creates an idle simulator for book.
func New(book *market.PriceBook, logger *zap.Logger) *Simulator {
	return &Simulator{
		logger: logger.Named("simulator"),
		book:   book,
	}
}

// AddRevaluer registers r to be revalued after every tick.
func (s *Simulator) AddRevaluer(r Revaluer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revaluers = append(s.revaluers, r)
}

// RemoveRevaluer unregisters r.
func (s *Simulator) RemoveRevaluer(r Revaluer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.revaluers[:0]
	for _, existing := range s.revaluers {
		if existing != r {
			kept = append(kept, existing)
		}
	}
	s.revaluers = kept
}

// OnTick registers fn to be called after every tick.
func (s *Simulator) OnTick(fn TickListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns the current lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns the number of ticks applied so far.
func (s *Simulator) Ticks() uint64 {
	return s.ticks.Load()
}

// Start moves the simulator from Idle to Running and ticks every interval in
// the background until Stop is called or ctx is done.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = Running
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.Run(runCtx, interval)

		s.mu.Lock()
		if s.done == done {
			s.state = Idle
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels the schedule and waits for the loop to exit.
// No tick is applied after Stop returns.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.state = Idle
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Run ticks every interval until ctx is done. It blocks.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting price simulation", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping price simulation", zap.Uint64("ticks", s.Ticks()))
			return
		case <-ticker.C:
			// Stop may have cancelled while the ticker fired
			if ctx.Err() != nil {
				continue
			}
			s.Step()
		}
	}
}

// Step applies one tick synchronously: drift every price, revalue every
// registered revaluer, then notify listeners.
func (s *Simulator) Step() {
	s.book.Tick()
	n := s.ticks.Add(1)

	s.mu.Lock()
	revaluers := append([]Revaluer(nil), s.revaluers...)
	listeners := append([]TickListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, r := range revaluers {
		r.RevalueAll(s.book)
	}
	if len(listeners) > 0 {
		quotes := s.book.Quotes()
		for _, fn := range listeners {
			fn(quotes)
		}
	}

	s.logger.Debug("Tick applied", zap.Uint64("tick", n), zap.Int("revaluers", len(revaluers)))
}
