// Package app wires config, storage, the bot surface and the sweep loop
// into one process.
package app

import (
	"context"
	"time"

	"zodbot/internal/config"
	"zodbot/internal/openrouter"
	"zodbot/internal/scheduler"
	"zodbot/internal/storage"
	"zodbot/internal/telegram"
	logx "zodbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	bot     *telegram.Bot
	sweeper *scheduler.Sweeper

	cancel context.CancelFunc
	done   chan struct{}
}

func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.OpenSQLite(ctx, storage.Options{
		Path:        cfg.Database.Path,
		BusyTimeout: busyTimeout,
		DefaultHour: cfg.Scheduler.NotifyHourDefault(),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	aiTimeout, err := config.ParseDurationOrDefault("openrouter.timeout", cfg.OpenRouter.Timeout, 30*time.Second)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	ai := openrouter.New(openrouter.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		BaseURL:     cfg.OpenRouter.BaseURL,
		Timeout:     aiTimeout,
		Temperature: cfg.OpenRouter.Temperature,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
	})
	if !ai.Configured() {
		log.Warn("openrouter.api_key not set; /ask is disabled")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, store, ai, log.With(logx.String("comp", "telegram")))
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	sweeper := scheduler.New(store, bot, log.With(logx.String("comp", "sweep")), schedCfg)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		bot:     bot,
		sweeper: sweeper,
		done:    make(chan struct{}),
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	tick, err := scheduler.ParseTick(cfg.Scheduler.Sweep)
	if err != nil {
		return scheduler.Config{}, err
	}
	deliveryTimeout, err := config.ParseDurationOrDefault(
		"scheduler.delivery_timeout", cfg.Scheduler.DeliveryTimeout, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Tick:            tick,
		DeliveryTimeout: deliveryTimeout,
		RatePerSec:      cfg.Telegram.SendRatePerSec,
	}, nil
}

// Start launches the poll loop, the sweep loop, the config watcher and the
// systemd handshake. It returns immediately; Stop tears everything down.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.bot.Start(runCtx)

	go func() {
		a.sweeper.Run(runCtx)
		close(a.done)
	}()

	go func() {
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go a.applyReloads(runCtx)

	notifyReady(a.log)
	go runWatchdog(runCtx, a.log)

	a.log.Info("started")
	return nil
}

// applyReloads pushes committed config changes into the services that can
// take them at runtime. Token, database path and OpenRouter settings need a
// restart; everything pacing-related hot-applies.
func (a *App) applyReloads(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			schedCfg, err := mapSchedulerConfig(cfg)
			if err != nil {
				// validate() accepted the file, so only the tick can be at
				// fault; keep the old cadence.
				a.log.Warn("scheduler settings not applied", logx.Err(err))
				continue
			}
			a.sweeper.Apply(schedCfg)
			a.log.Info("runtime settings applied",
				logx.String("tick", schedCfg.Tick.String()))
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	notifyStopping(a.log)
	if a.cancel != nil {
		a.cancel()
	}
	a.bot.Stop()

	// Let an in-flight sweep finish before closing its store.
	select {
	case <-a.done:
	case <-ctx.Done():
		a.log.Warn("sweep did not finish before shutdown deadline")
	}

	err := a.store.Close()
	a.log.Info("stopped")
	a.logs.Close()
	return err
}
