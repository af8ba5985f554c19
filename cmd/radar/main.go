package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexpulse/internal/candle"
	"dexpulse/internal/config"
	"dexpulse/internal/domain"
	"dexpulse/internal/events"
	"dexpulse/internal/fetch"
	"dexpulse/internal/gapfill"
	"dexpulse/internal/indicator"
	"dexpulse/internal/market"
	"dexpulse/internal/notify"
	"dexpulse/internal/observability"
	"dexpulse/internal/quote"
	"dexpulse/internal/retention"
	"dexpulse/internal/scheduler"
	sig "dexpulse/internal/signal"
	"dexpulse/internal/storage"
	"dexpulse/internal/storage/memory"
	"dexpulse/internal/storage/migrations"
	pgstore "dexpulse/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", "", "Metrics/health HTTP address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[radar] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	metrics := observability.NewMetrics("dexpulse")

	if cfg.HTTPAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
			if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("HTTP server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, metrics, logger)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger *log.Logger) error {
	// Stores.
	var (
		poolStore     storage.PoolStore           = memory.NewPoolStore()
		candleStore   storage.CandleStore         = memory.NewCandleStore()
		signalStore   storage.SignalStore         = memory.NewSignalStore()
		refPriceStore storage.ReferencePriceStore = memory.NewReferencePriceStore()
		notifStore    storage.NotificationStore   = memory.NewNotificationStore()
	)

	if !cfg.Storage.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrationsWithRetry(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		poolStore = pgstore.NewPoolStore(pool)
		candleStore = pgstore.NewCandleStore(pool)
		signalStore = pgstore.NewSignalStore(pool)
		refPriceStore = pgstore.NewReferencePriceStore(pool)
		notifStore = pgstore.NewNotificationStore(pool)
	}

	// External providers through rate-limited clients.
	marketHTTP := fetch.NewClient(fetch.Config{
		Provider:    "market",
		MinInterval: cfg.MarketMinInterval(),
		DailyQuota:  cfg.Market.DailyQuota,
	}, nil, logger)
	quoteHTTP := fetch.NewClient(fetch.Config{
		Provider:    "quote",
		MinInterval: cfg.QuoteMinInterval(),
		DailyQuota:  cfg.Quote.DailyQuota,
	}, nil, logger)

	priceSource := market.NewSource(marketHTTP, cfg.Market.BaseURL, nil, logger)
	quoteClient := quote.NewClient(quoteHTTP, cfg.Quote.BaseURL, logger)

	// Notification sink.
	var sink sig.Sink
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		sink = notify.NewTelegramSink("", cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	} else {
		logger.Println("No chat destination configured, notifications go to the log")
		sink = &notify.LogSink{Printf: logger.Printf}
	}

	// Ingestion path: subscription -> source -> consumer -> aggregator.
	ws, err := events.NewWSClient(ctx, cfg.Events.WSEndpoint, cfg.Events.Programs, nil, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	source := events.NewSource(events.SourceOptions{
		WS:          ws,
		Lookup:      events.NewTxLookup(cfg.Events.RPCEndpoint),
		Deriver:     quoteClient,
		SlippageBps: cfg.Quote.SlippageBps,
		Metrics:     metrics,
	})
	aggregator := candle.NewAggregator(candleStore, domain.DefaultCandleInterval)
	consumer := events.NewConsumer(poolStore, aggregator, source, nil, metrics)

	go func() {
		if err := source.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("Event source stopped: %v", err)
		}
	}()
	go func() {
		if err := consumer.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("Event consumer stopped: %v", err)
		}
	}()

	// Periodic jobs.
	engine, err := indicator.NewEngine(indicator.Config{MinWindow: cfg.Detector.WindowSize})
	if err != nil {
		return fmt.Errorf("create indicator engine: %w", err)
	}

	filler := gapfill.New(gapfill.Options{
		Pools:           poolStore,
		Candles:         candleStore,
		ReferencePrices: refPriceStore,
		Source:          priceSource,
		Metrics:         metrics,
	})
	detector := sig.NewDetector(sig.DetectorOptions{
		Pools:   poolStore,
		Candles: candleStore,
		Signals: signalStore,
		Engine:  engine,
		Config: sig.DetectorConfig{
			MinPoolAgeSeconds: cfg.Detector.MinPoolAgeSeconds,
			VolSpikeThreshold: cfg.Detector.VolSpikeThreshold,
			RSIOversold:       cfg.Detector.RSIOversold,
			WindowSize:        cfg.Detector.WindowSize,
		},
		Metrics: metrics,
	})
	notifier := sig.NewNotifier(sig.NotifierOptions{
		Pools:         poolStore,
		Signals:       signalStore,
		Notifications: notifStore,
		Quotes:        quoteClient,
		Sink:          sink,
		Config: sig.NotifierConfig{
			MinLiquidityUSD: cfg.Notifier.MinLiquidityUSD,
			MaxFdvUSD:       cfg.Notifier.MaxFdvUSD,
			TestNotionalUSD: cfg.Notifier.TestNotionalUSD,
			MaxImpactPct:    cfg.Notifier.MaxImpactPct,
			SlippageBps:     cfg.Quote.SlippageBps,
		},
		Metrics: metrics,
	})
	cleaner := retention.New(retention.Options{
		Pools:           poolStore,
		Candles:         candleStore,
		Signals:         signalStore,
		ReferencePrices: refPriceStore,
		Notifications:   notifStore,
		Horizons:        retentionHorizons(cfg.Retention),
		Metrics:         metrics,
	})

	sched := scheduler.New(scheduler.Intervals{
		Gapfill:   time.Duration(cfg.Intervals.GapfillSeconds) * time.Second,
		Detect:    time.Duration(cfg.Intervals.DetectSeconds) * time.Second,
		Notify:    time.Duration(cfg.Intervals.NotifySeconds) * time.Second,
		Retention: time.Duration(cfg.Intervals.RetentionSeconds) * time.Second,
	}, scheduler.Jobs{
		Gapfill: func(ctx context.Context) []string {
			if _, err := filler.RunCycle(ctx); err != nil {
				return []string{err.Error()}
			}
			return nil
		},
		Detect: func(ctx context.Context) []string {
			_, errs := detector.RunCycle(ctx)
			return errs
		},
		Notify: func(ctx context.Context) []string {
			_, errs := notifier.RunCycle(ctx)
			return errs
		},
		Retention: cleaner.RunCycle,
	}, sink, logger)

	logger.Println("Starting radar...")
	return sched.Run(ctx)
}

// retentionHorizons maps configured hours onto the cleaner's windows.
func retentionHorizons(rc config.RetentionConfig) retention.Horizons {
	h := retention.DefaultHorizons()
	apply := func(dst *time.Duration, hours int) {
		switch {
		case hours > 0:
			*dst = time.Duration(hours) * time.Hour
		case hours < 0:
			*dst = 0
		}
	}
	apply(&h.Signals, rc.SignalsHours)
	apply(&h.Candles, rc.CandlesHours)
	apply(&h.ReferencePrices, rc.ReferencePricesHours)
	apply(&h.Pools, rc.PoolsHours)
	apply(&h.Notifications, rc.NotificationsHours)
	return h
}
