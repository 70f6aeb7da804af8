package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"zodbot/internal/storage"
	logx "zodbot/pkg/logx"
)

// fakeSender records deliveries and can fail selected recipients.
type fakeSender struct {
	mu       sync.Mutex
	sent     map[int64]string
	failIDs  map[int64]bool
	sendErr  error
	delivers int
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[int64]string{}, failIDs: map[int64]bool{}}
}

func (f *fakeSender) Deliver(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivers++
	if f.failIDs[userID] {
		if f.sendErr != nil {
			return f.sendErr
		}
		return errors.New("recipient unreachable")
	}
	f.sent[userID] = text
	return nil
}

func (f *fakeSender) sentTo(id int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.sent[id]
	return text, ok
}

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.OpenSQLite(context.Background(), storage.Options{
		Path:        filepath.Join(t.TempDir(), "bot.db"),
		DefaultHour: 9,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedSubscriber(t *testing.T, st storage.Store, id int64, sign string, hour int) {
	t.Helper()
	ctx := context.Background()
	if err := st.EnsureUser(ctx, id); err != nil {
		t.Fatalf("EnsureUser(%d): %v", id, err)
	}
	if err := st.SetSign(ctx, id, sign); err != nil {
		t.Fatalf("SetSign(%d): %v", id, err)
	}
	if err := st.SetNotifyHour(ctx, id, hour); err != nil {
		t.Fatalf("SetNotifyHour(%d): %v", id, err)
	}
}

func TestSweepDeliversAndMarks(t *testing.T) {
	st := openTestStore(t)
	sender := newFakeSender()
	seedSubscriber(t, st, 1, "leo", 9)
	seedSubscriber(t, st, 2, "virgo", 9)
	seedSubscriber(t, st, 3, "aries", 10) // wrong hour

	s := New(st, sender, logx.Nop(), Config{})
	now := time.Date(2026, 9, 1, 9, 0, 30, 0, time.UTC)
	s.Sweep(context.Background(), now)

	if _, ok := sender.sentTo(1); !ok {
		t.Fatalf("user 1 not delivered")
	}
	if _, ok := sender.sentTo(2); !ok {
		t.Fatalf("user 2 not delivered")
	}
	if _, ok := sender.sentTo(3); ok {
		t.Fatalf("user 3 delivered outside its hour")
	}

	u, err := st.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.LastSentDate != "2026-09-01" {
		t.Fatalf("last_sent_date = %q", u.LastSentDate)
	}
}

func TestSweepIsIdempotentWithinDay(t *testing.T) {
	st := openTestStore(t)
	sender := newFakeSender()
	seedSubscriber(t, st, 1, "leo", 9)

	s := New(st, sender, logx.Nop(), Config{})
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	s.Sweep(context.Background(), now)
	s.Sweep(context.Background(), now.Add(time.Minute))
	s.Sweep(context.Background(), now.Add(2*time.Minute))

	sender.mu.Lock()
	delivers := sender.delivers
	sender.mu.Unlock()
	if delivers != 1 {
		t.Fatalf("delivered %d times within one day, want 1", delivers)
	}

	// Next day it goes out again.
	s.Sweep(context.Background(), now.AddDate(0, 0, 1))
	sender.mu.Lock()
	delivers = sender.delivers
	sender.mu.Unlock()
	if delivers != 2 {
		t.Fatalf("delivered %d times across two days, want 2", delivers)
	}
}

func TestSweepFailureKeepsEligibility(t *testing.T) {
	st := openTestStore(t)
	sender := newFakeSender()
	sender.failIDs[1] = true
	seedSubscriber(t, st, 1, "leo", 9)
	seedSubscriber(t, st, 2, "virgo", 9)

	s := New(st, sender, logx.Nop(), Config{})
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	s.Sweep(context.Background(), now)

	// The failed user stays unmarked, the successful one is done.
	u1, err := st.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUser(1): %v", err)
	}
	if u1.LastSentDate != "" {
		t.Fatalf("failed delivery marked sent: %q", u1.LastSentDate)
	}
	u2, err := st.GetUser(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetUser(2): %v", err)
	}
	if u2.LastSentDate != "2026-09-01" {
		t.Fatalf("user 2 not marked: %q", u2.LastSentDate)
	}

	// Transport recovers; next tick retries only user 1.
	sender.mu.Lock()
	sender.failIDs[1] = false
	sender.mu.Unlock()
	s.Sweep(context.Background(), now.Add(time.Minute))

	if _, ok := sender.sentTo(1); !ok {
		t.Fatalf("user 1 not retried")
	}
	u1, err = st.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUser(1): %v", err)
	}
	if u1.LastSentDate != "2026-09-01" {
		t.Fatalf("retried delivery not marked: %q", u1.LastSentDate)
	}
}

func TestSweepPayloadMatchesSign(t *testing.T) {
	st := openTestStore(t)
	sender := newFakeSender()
	seedSubscriber(t, st, 1, "pisces", 9)

	s := New(st, sender, logx.Nop(), Config{})
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	s.Sweep(context.Background(), now)

	text, ok := sender.sentTo(1)
	if !ok {
		t.Fatalf("no delivery")
	}
	if want := "Pisces — 2026-09-01"; !strings.Contains(text, want) {
		t.Fatalf("payload %q does not mention %q", text, want)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	st := openTestStore(t)
	sender := newFakeSender()
	seedSubscriber(t, st, 1, "leo", 9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(st, sender, logx.Nop(), Config{})
	s.Sweep(ctx, time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))

	sender.mu.Lock()
	delivers := sender.delivers
	sender.mu.Unlock()
	if delivers != 0 {
		t.Fatalf("delivered %d with canceled context", delivers)
	}
}

func TestApplySwapsTick(t *testing.T) {
	st := openTestStore(t)
	s := New(st, newFakeSender(), logx.Nop(), Config{})

	tick, err := ParseTick("30s")
	if err != nil {
		t.Fatalf("ParseTick: %v", err)
	}
	s.Apply(Config{Tick: tick, RatePerSec: 5})

	cfg, limiter := s.snapshot()
	if cfg.Tick.String() != "30s" {
		t.Fatalf("tick = %q after Apply", cfg.Tick.String())
	}
	if cfg.RatePerSec != 5 {
		t.Fatalf("rate = %d after Apply", cfg.RatePerSec)
	}
	if limiter == nil {
		t.Fatalf("limiter missing after Apply")
	}
}
