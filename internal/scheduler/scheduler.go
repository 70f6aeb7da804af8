// Package scheduler runs the delivery sweep loop.
//
// One dedicated goroutine wakes on a fixed cadence, resolves the due-set for
// the current (date, hour), generates each subscriber's payload and hands it
// to the transport. Only a successful send marks the subscriber as served
// for the day, so transient failures retry on the next tick for as long as
// the clock hour still matches.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"zodbot/internal/horoscope"
	"zodbot/internal/storage"
	logx "zodbot/pkg/logx"
)

// Sender is the narrow transport contract the sweep needs.
type Sender interface {
	Deliver(ctx context.Context, userID int64, text string) error
}

type Config struct {
	Tick TickSpec

	// DeliveryTimeout bounds a single Deliver call. 0 means 10s.
	DeliveryTimeout time.Duration

	// RatePerSec caps outgoing sends across a sweep. 0 means 25.
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25
	}
	return c
}

// Sweeper is the single writer of last_sent_date.
type Sweeper struct {
	store  storage.Store
	sender Sender
	log    logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(store storage.Store, sender Sender, log logx.Logger, cfg Config) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Sweeper{
		store:   store,
		sender:  sender,
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Apply swaps pacing settings at runtime (config hot-reload).
// The new tick takes effect after the current wait expires.
func (s *Sweeper) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	if cfg.RatePerSec != s.cfg.RatePerSec {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Sweeper) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// Run blocks until ctx is done. An in-flight sweep always finishes; no
// error terminates the loop.
func (s *Sweeper) Run(ctx context.Context) {
	cfg, _ := s.snapshot()
	s.log.Info("sweep loop started",
		logx.String("tick", cfg.Tick.String()),
		logx.Duration("delivery_timeout", cfg.DeliveryTimeout))

	timer := time.NewTimer(0)
	defer timer.Stop()
	// Drain the immediate first fire; the loop arms it below.
	<-timer.C

	for {
		cfg, _ = s.snapshot()
		now := time.Now()
		timer.Reset(cfg.Tick.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			s.log.Info("sweep loop stopping")
			return
		case <-timer.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Sweep processes the due-set for the (date, hour) derived from now.
// now is captured once so every decision in the pass shares one clock
// reading even if the sweep straddles an hour boundary.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in sweep",
				logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	cfg, limiter := s.snapshot()
	day := now
	hour := now.Hour()
	sweepID := uuid.NewString()
	log := s.log.With(logx.String("sweep_id", sweepID))

	due, err := s.store.ListDue(ctx, day, hour)
	if err != nil {
		// Store unreachable: abandon this sweep, the loop retries next tick.
		log.Error("due-set query failed", logx.Err(err), logx.Int("hour", hour))
		return
	}
	if len(due) == 0 {
		return
	}
	log.Info("sweep started", logx.Int("due", len(due)), logx.Int("hour", hour))

	delivered, failed := 0, 0
	for _, d := range due {
		if ctx.Err() != nil {
			log.Warn("sweep interrupted by shutdown",
				logx.Int("delivered", delivered), logx.Int("remaining", len(due)-delivered-failed))
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		text := horoscope.Generate(d.Sign, day)

		sendCtx, cancel := context.WithTimeout(ctx, cfg.DeliveryTimeout)
		err := s.sender.Deliver(sendCtx, d.ID, text)
		cancel()
		if err != nil {
			// Leave last_sent_date untouched; the subscriber stays
			// eligible while the hour matches.
			failed++
			log.Warn("delivery failed", logx.Int64("user_id", d.ID), logx.Err(err))
			continue
		}

		if err := s.store.MarkSent(ctx, d.ID, day); err != nil {
			failed++
			log.Error("mark-sent failed", logx.Int64("user_id", d.ID), logx.Err(err))
			continue
		}
		delivered++
	}

	log.Info("sweep finished",
		logx.Int("delivered", delivered), logx.Int("failed", failed))
}
