package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/alerts"
	"github.com/tap2go/tap2go/internal/auth"
	"github.com/tap2go/tap2go/internal/clock"
	"github.com/tap2go/tap2go/internal/config"
	"github.com/tap2go/tap2go/internal/db"
	"github.com/tap2go/tap2go/internal/events"
	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/linkcache"
	"github.com/tap2go/tap2go/internal/logging"
	"github.com/tap2go/tap2go/internal/metrics"
	"github.com/tap2go/tap2go/internal/storage/memory"
	"github.com/tap2go/tap2go/internal/storage/postgres"
	"github.com/tap2go/tap2go/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// app holds everything main builds so routes and shutdown can reach it.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    ledger.Store
	ready    func(context.Context) error
	ledger   *ledger.Service
	auth     *auth.Service
	linker   *telegram.Linker
	bot      *telegram.Bot
	events   events.Publisher
	notifier alerts.Notifier
	closers  []func()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := a.openStore(ctx); err != nil {
		return err
	}
	a.ledger = ledger.NewService(a.store,
		ledger.WithMinWithdrawal(cfg.MinWithdrawal),
		ledger.WithStatementLocation(cfg.StatementLocation),
	)
	a.auth = auth.NewService(a.store,
		auth.NewLocalProvider(a.store),
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL, clock.RealClock{}),
		auth.WithBootstrapSecret(cfg.AdminBootstrapSecret),
	)
	a.events = a.openEvents()
	if err := a.openAlerts(); err != nil {
		return err
	}
	a.linker = telegram.NewLinker(a.store, a.openLinkCache(), telegram.LinkerConfig{
		BotUsername: cfg.TelegramBotUsername,
		TokenTTL:    cfg.LinkTokenTTL,
		Metrics:     a.metrics,
		Log:         log.Named("telegram"),
	})
	if err := a.openBot(); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpx.NewValidator()
	e.HTTPErrorHandler = httpx.ErrorHandler(log)
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	e.Use(a.metrics.Middleware())
	a.routes(e)

	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("port", cfg.Port), zap.String("store", cfg.Store))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Store == config.StoreMemory {
		a.log.Warn("using in-memory store; data is lost on restart")
		a.store = memory.New()
		a.ready = func(context.Context) error { return nil }
		return nil
	}
	pool, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	if err := db.EnsureSchema(ctx, pool, a.log); err != nil {
		return err
	}
	a.store = postgres.New(pool)
	a.ready = pool.Ping
	return nil
}

func (a *app) openLinkCache() linkcache.Cache {
	if a.cfg.RedisAddr == "" {
		return linkcache.NewMemory(0)
	}
	rc := linkcache.DefaultRedisConfig()
	rc.Addr = a.cfg.RedisAddr
	rc.Password = a.cfg.RedisPassword
	r, err := linkcache.NewRedis(rc)
	if err != nil {
		a.log.Warn("redis link cache unavailable, using process memory", zap.Error(err))
		return linkcache.NewMemory(0)
	}
	a.closers = append(a.closers, r.Close)
	return linkcache.NewGuarded(r, 0, a.log.Named("linkcache"))
}

func (a *app) openEvents() events.Publisher {
	if len(a.cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	p := events.NewKafkaPublisher(a.cfg.KafkaBrokers)
	a.closers = append(a.closers, func() {
		if err := p.Close(); err != nil {
			a.log.Warn("kafka writer close failed", zap.Error(err))
		}
	})
	return p
}

// openAlerts starts the email queue and its worker when a Redis for asynq is
// configured. Without one, notifications are dropped.
func (a *app) openAlerts() error {
	if a.cfg.AlertsRedisAddr == "" {
		a.notifier = alerts.Nop{}
		return nil
	}
	opt := asynq.RedisClientOpt{Addr: a.cfg.AlertsRedisAddr, Password: a.cfg.RedisPassword}
	client := asynq.NewClient(opt)
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.notifier = alerts.NewQueue(client, a.cfg.AdminEmail)

	var mailer alerts.Mailer = alerts.NewLogMailer(a.log.Named("mail"))
	if a.cfg.SMTP.Configured() {
		m, err := alerts.NewSMTPMailer(a.cfg.SMTP)
		if err != nil {
			return err
		}
		mailer = m
	}
	w := alerts.NewWorker(opt, mailer, a.log)
	if err := w.Start(); err != nil {
		return err
	}
	a.closers = append(a.closers, w.Shutdown)
	return nil
}

func (a *app) openBot() error {
	if a.cfg.TelegramBotToken == "" {
		a.log.Info("telegram bot disabled: TELEGRAM_BOT_TOKEN not set")
		return nil
	}
	api, err := telegram.NewBotAPI(a.cfg.TelegramBotToken, a.cfg.TelegramWebhookURL, a.cfg.TelegramWebhookSecret)
	if err != nil {
		return err
	}
	a.bot = telegram.NewBot(a.linker, a.ledger, telegram.NewBotAPISender(api, a.log.Named("telegram")), telegram.BotConfig{
		ProfileURL: a.cfg.ProfileURL,
		Location:   a.cfg.StatementLocation,
		Metrics:    a.metrics,
		Log:        a.log.Named("telegram"),
	})
	return nil
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
