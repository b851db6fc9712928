// cmd/sentinel runs the market monitor: it refreshes indicator snapshots for
// the configured universe, evaluates alarm rules, and serves the REST and
// WebSocket API.
//
// Usage:
//
//	go run ./cmd/sentinel
//	go run ./cmd/sentinel -gen-totp
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"

	"market-sentinel/config"
	"market-sentinel/internal/alarm"
	"market-sentinel/internal/api"
	"market-sentinel/internal/backtest"
	"market-sentinel/internal/gateway"
	"market-sentinel/internal/logger"
	"market-sentinel/internal/marketdata"
	"market-sentinel/internal/metrics"
	"market-sentinel/internal/model"
	"market-sentinel/internal/monitor"
	"market-sentinel/internal/notification"
	"market-sentinel/internal/portfolio"
	"market-sentinel/internal/rule"
	redisstore "market-sentinel/internal/store/redis"
	sqlitestore "market-sentinel/internal/store/sqlite"
)

// repository is what every store backend provides.
type repository interface {
	alarm.Repository
	portfolio.Repository
}

type backend struct {
	repo    repository
	cache   model.CandleCache // sqlite only
	sqlDB   *sql.DB
	rdb     *goredis.Client
	redis   *redisstore.Store
	closeFn func() error
}

func main() {
	genTOTP := flag.Bool("gen-totp", false, "Generate an admin TOTP secret and exit")
	flag.Parse()

	if *genTOTP {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "market-sentinel", AccountName: "admin"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate totp: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ADMIN_TOTP_SECRET=%s\n", key.Secret())
		fmt.Printf("otpauth URL: %s\n", key.URL())
		return
	}

	cfg := config.Load()
	logger.Init("sentinel", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", "backend", cfg.StoreBackend, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	universe, err := config.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		fatal("load universe", err)
	}
	if !cfg.StocksEnabled() {
		universe = withoutStocks(universe)
		slog.Warn("alpaca credentials missing, equities disabled")
	}
	timeframes := cfg.ParseTimeframes()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus(cfg.StoreBackend)

	be, err := openBackend(cfg, m)
	if err != nil {
		fatal("open store", err)
	}
	defer be.closeFn()
	health.StartLivenessChecker(ctx, be.rdb, be.sqlDB, 15*time.Second)

	// ── Market data ──
	router := &marketdata.Router{
		Crypto: marketdata.NewBinance(cfg.BinanceAPIKey, cfg.BinanceSecretKey),
		Cache:  be.cache,
	}
	if cfg.StocksEnabled() {
		router.Stocks = marketdata.NewAlpaca(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)
	}
	collector := marketdata.NewCollector(router)
	collector.Limit = cfg.KlineLimit
	collector.StockRequestGap = cfg.StockRequestGap
	collector.OnFetchError = m.CountFetchFailure

	// ── Domain services ──
	book, err := alarm.NewBook(ctx, be.repo, alarm.NewMachine(), cfg.SignalRetention)
	if err != nil {
		fatal("load alarm book", err)
	}
	tracker, err := portfolio.NewTracker(ctx, be.repo)
	if err != nil {
		fatal("load portfolio", err)
	}

	var history backtest.HistorySource = router
	if be.cache != nil {
		history = &marketdata.Cached{Cache: be.cache, Source: router}
	}
	runner := backtest.NewRunner(history)

	gate := notification.NewGate(buildNotifiers(cfg), true)

	// ── Live stream ──
	hub := gateway.NewHub()
	hub.OnClientCount = func(n int) { m.WSClients.Set(float64(n)) }

	monCfg := monitor.Config{
		Universe:        universe,
		Timeframes:      timeframes,
		RefreshInterval: cfg.RefreshInterval,
		Collector:       collector,
		Book:            book,
		Notifier:        gate,
		Metrics:         m,
		Health:          health,
	}
	if be.redis != nil {
		// Redis fans out to every gateway process, this one included.
		monCfg.Publisher = be.redis
		psr := gateway.NewPubSubRouter(hub, be.rdb, map[string]string{
			redisstore.ChannelSignals: gateway.ChannelSignals,
			redisstore.ChannelCycle:   gateway.ChannelCycle,
		})
		go psr.Run(ctx)
	} else {
		monCfg.Broadcaster = hub
	}
	mon, err := monitor.New(monCfg)
	if err != nil {
		fatal("create monitor", err)
	}
	go mon.Run(ctx)

	// ── HTTP ──
	if cfg.AdminTOTPSecret == "" {
		slog.Warn("ADMIN_TOTP_SECRET not set, mutating routes are unprotected")
	}
	srv := api.NewServer(cfg.HTTPAddr, api.Deps{
		Monitor:    mon,
		Book:       book,
		Backtests:  runner,
		Portfolio:  tracker,
		Gate:       gate,
		Stream:     hub,
		Health:     health,
		Metrics:    m,
		Gatherer:   prometheus.DefaultGatherer,
		TOTPSecret: cfg.AdminTOTPSecret,
		StaleAfter: 3 * cfg.RefreshInterval,
	})
	srv.Start()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("stopped")
}

func openBackend(cfg *config.Config, m *metrics.Metrics) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return &backend{
			repo:    memoryRepository{alarms: alarm.NewMemoryRepository(), items: &portfolio.MemoryRepository{}},
			closeFn: func() error { return nil },
		}, nil

	case config.BackendRedis:
		st, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		st.Breaker().OnStateChange = func(from, to redisstore.State) {
			m.ObserveBreaker(int(to))
			slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		}
		return &backend{repo: st, rdb: st.Client(), redis: st, closeFn: st.Close}, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		st, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			return nil, err
		}
		return &backend{repo: st, cache: st, sqlDB: st.DB(), closeFn: st.Close}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// memoryRepository joins the two in-memory repositories.
type memoryRepository struct {
	alarms *alarm.MemoryRepository
	items  *portfolio.MemoryRepository
}

func (m memoryRepository) LoadRules(ctx context.Context) ([]rule.Rule, error) {
	return m.alarms.LoadRules(ctx)
}

func (m memoryRepository) SaveRules(ctx context.Context, rules []rule.Rule) error {
	return m.alarms.SaveRules(ctx, rules)
}

func (m memoryRepository) LoadSignals(ctx context.Context) ([]alarm.Signal, error) {
	return m.alarms.LoadSignals(ctx)
}

func (m memoryRepository) SaveSignals(ctx context.Context, signals []alarm.Signal) error {
	return m.alarms.SaveSignals(ctx, signals)
}

func (m memoryRepository) LoadItems(ctx context.Context) ([]portfolio.Item, error) {
	return m.items.LoadItems(ctx)
}

func (m memoryRepository) SaveItems(ctx context.Context, items []portfolio.Item) error {
	return m.items.SaveItems(ctx, items)
}

func buildNotifiers(cfg *config.Config) notification.Notifier {
	out := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			slog.Warn("telegram disabled", "error", err)
		} else {
			out = append(out, tg)
		}
	}
	if cfg.WebhookURL != "" {
		out = append(out, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	slog.Info("notifiers configured", "count", len(out))
	return out
}

func withoutStocks(universe []model.Asset) []model.Asset {
	out := make([]model.Asset, 0, len(universe))
	for _, a := range universe {
		if a.Class != model.ClassStock {
			out = append(out, a)
		}
	}
	return out
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
