// Package telegram is the bot surface: command handlers for preference
// management plus the transport the sweep loop delivers through.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"zodbot/internal/openrouter"
	"zodbot/internal/storage"
	logx "zodbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration // 0 means 10s
}

// Bot owns the telebot instance and implements scheduler.Sender.
type Bot struct {
	cfg   Config
	log   logx.Logger
	store storage.Store
	ai    *openrouter.Client

	bot *tele.Bot

	mu      sync.Mutex
	baseCtx context.Context
	running bool
}

func New(cfg Config, store storage.Store, ai *openrouter.Client, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Bot{cfg: cfg, log: log, store: store, ai: ai, bot: b}, nil
}

// Start registers handlers and begins long polling. It returns once polling
// is up; the poll loop itself runs until Stop.
func (b *Bot) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.baseCtx = ctx
	b.mu.Unlock()

	b.registerHandlers()

	if err := b.bot.SetCommands(menuCommands); err != nil {
		// Cosmetic only; the bot works without the client-side menu.
		b.log.Warn("setMyCommands failed", logx.Err(err))
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	go func() {
		b.log.Info("polling started")
		b.bot.Start() // blocks until Stop() called
		b.log.Info("polling stopped")
	}()
}

func (b *Bot) Stop() {
	b.mu.Lock()
	wasRunning := b.running
	b.running = false
	b.mu.Unlock()
	if wasRunning {
		b.bot.Stop()
	}
}

// Deliver sends a scheduled payload. telebot sends have no context
// parameter, so the call runs in a goroutine and the ctx deadline decides
// how long the sweep waits for it.
func (b *Bot) Deliver(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := b.bot.Send(&tele.User{ID: userID}, text)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// opCtx derives a bounded context for one handler invocation.
func (b *Bot) opCtx() (context.Context, context.CancelFunc) {
	b.mu.Lock()
	base := b.baseCtx
	b.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, 5*time.Second)
}
