package cmd

import (
	"context"
	"fmt"

	"golang-options/config"
	"golang-options/internal/repository"
	"golang-options/internal/service"
	"golang-options/pkg/cache"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/postgres"
	"golang-options/pkg/telegram"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm"
)

const storeDriverMemory = "memory"

type AppDependency struct {
	db          *postgres.DB
	cfg         *config.Config
	log         *logger.Logger
	validator   *goValidator.Validate
	echo        *echo.Echo
	cache       cache.Cache
	metrics     *metrics.Registry
	clock       clock.Clock
	notifier    *telegram.Notifier
	telegramBot *telebot.Bot
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// The notifier logs through a plain logger; the app logger alerts through it.
	baseLog, err := logger.New(cfg.Log.Level, cfg.Log.Encoding, nil)
	if err != nil {
		return nil, err
	}

	bot, err := telegram.NewBot(&cfg.Telegram)
	if err != nil {
		baseLog.Error("Failed to create telegram bot", zap.Error(err))
		return nil, err
	}
	var sender telegram.Sender
	if bot != nil {
		sender = bot
	}
	notifier := telegram.NewNotifier(&cfg.Telegram, baseLog, sender)

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding, notifier)
	if err != nil {
		return nil, err
	}

	var db *postgres.DB
	if cfg.Store.Driver != storeDriverMemory {
		db, err = postgres.NewDB(cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return nil, err
		}
	} else {
		log.Warn("Using the in-memory store, state is lost on restart")
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:         cfg,
		log:         log,
		validator:   goValidator.New(),
		db:          db,
		echo:        e,
		cache:       cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		metrics:     metrics.New(),
		clock:       clock.New(),
		notifier:    notifier,
		telegramBot: bot,
	}, nil
}

func (d *AppDependency) gormDB() *gorm.DB {
	if d.db == nil {
		return nil
	}
	return d.db.DB
}

// NewServices builds the repositories and services and seeds the default
// account.
func (d *AppDependency) NewServices(ctx context.Context) (*service.Service, error) {
	repo, err := repository.NewRepository(d.cfg, d.gormDB(), d.log, d.metrics, d.clock)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	services := service.NewService(d.cfg, d.log, repo, d.cache, d.metrics, d.clock, d.notifier)
	if _, err := services.AccountService.EnsureDefault(ctx); err != nil {
		return nil, fmt.Errorf("ensure default account: %w", err)
	}
	return services, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	_ = d.log.Sync()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
