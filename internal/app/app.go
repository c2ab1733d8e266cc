package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"powerindex/internal/alerting"
	"powerindex/internal/chain"
	"powerindex/internal/config"
	"powerindex/internal/nordpool"
	"powerindex/internal/publisher"
	"powerindex/internal/scheduler"
	"powerindex/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newMarket() *nordpool.Client {
	return nordpool.NewClient(nordpool.Options{
		TokenURL:      a.Config.NordPool.TokenURL,
		APIURL:        a.Config.NordPool.APIURL,
		VolumesAPIURL: a.Config.NordPool.VolumesAPIURL,
		Market:        a.Config.NordPool.Market,
		Currency:      a.Config.NordPool.Currency,
		BasicAuth:     a.Config.NordPool.BasicAuth,
		Username:      a.Config.NordPool.Username,
		Password:      a.Config.NordPool.Password,
		Scope:         a.Config.NordPool.Scope,
		Timeout:       a.Config.NordPool.RequestTimeout,
		UserAgent:     a.Config.NordPool.UserAgent,
	}, a.Logger)
}

func (a *App) newChain() *chain.Client {
	return chain.NewClient(chain.Options{
		RPCURL:          a.Config.Ethereum.RPCURL,
		ConsumerAddress: a.Config.Ethereum.ConsumerAddress,
		ChainID:         a.Config.Ethereum.ChainID,
		PrivateKey:      a.Config.Ethereum.PrivateKey,
		GasLimit:        a.Config.Ethereum.GasLimit,
		Timeout:         a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(sched *scheduler.Scheduler, store *storage.Store) *publisher.Service {
	client := a.newChain()

	var pubStore storage.PublicationStore
	var runStore storage.RunStore
	if store != nil {
		pubStore = store
		runStore = store
	}

	return publisher.New(a.Config, sched, a.newMarket(), client, client, pubStore, runStore, a.newNotifier(), a.Logger)
}

// Run executes the long-running scheduled publisher.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit trail disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(sched, store)

	a.Logger.Info().Str("index", a.Config.Index.Name).Strs("areas", a.Config.Index.Areas).Msg("starting publisher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("publisher terminated with error")
		return err
	}

	a.Logger.Info().Msg("publisher service stopped")
	return nil
}

// PublishOptions configure a one-shot publish invocation.
type PublishOptions struct {
	// Date is the delivery date (YYYY-MM-DD); empty means tomorrow UTC.
	Date   string
	DryRun bool
}

// BackfillOptions configure re-publication over a delivery date range.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Runs  bool
}

// ExportOptions hold parameters for exporting publication history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
