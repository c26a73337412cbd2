package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zkUSD-Protocol/services/internal/alert"
	"github.com/zkUSD-Protocol/services/internal/api"
	"github.com/zkUSD-Protocol/services/internal/audit"
	"github.com/zkUSD-Protocol/services/internal/chain/mina"
	"github.com/zkUSD-Protocol/services/internal/chain/ratelimit"
	"github.com/zkUSD-Protocol/services/internal/config"
	"github.com/zkUSD-Protocol/services/internal/domain/model"
	"github.com/zkUSD-Protocol/services/internal/metrics"
	"github.com/zkUSD-Protocol/services/internal/oracle"
	"github.com/zkUSD-Protocol/services/internal/pipeline"
	"github.com/zkUSD-Protocol/services/internal/pipeline/orchestrator"
	"github.com/zkUSD-Protocol/services/internal/pipeline/reconciler"
	"github.com/zkUSD-Protocol/services/internal/pipeline/reducer"
	"github.com/zkUSD-Protocol/services/internal/pipeline/worker"
	"github.com/zkUSD-Protocol/services/internal/prover"
	"github.com/zkUSD-Protocol/services/internal/prover/rpc"
	"github.com/zkUSD-Protocol/services/internal/store/postgres"
	redispkg "github.com/zkUSD-Protocol/services/internal/store/redis"
	"github.com/zkUSD-Protocol/services/internal/tracing"
)

const (
	workerDrainTimeout = 10 * time.Second

	// dbPoolExhaustionThreshold is the in-use fraction of the pool above
	// which the stats pump starts warning.
	dbPoolExhaustionThreshold = 0.8
)

var (
	newStreamFactory         = func(redisURL string) (redispkg.MessageTransport, error) { return redispkg.NewStream(redisURL) }
	newInMemoryStreamFactory = func() redispkg.MessageTransport { return redispkg.NewInMemoryStream() }
)

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open      prometheus.Gauge
	inUse     prometheus.Gauge
	idle      prometheus.Gauge
	waitCount prometheus.Gauge
}

func collectDBPoolStats(db dbStatsProvider, gauges dbPoolStatsGauges) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats sample panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("nil db stats provider")
	}

	stats := db.Stats()
	gauges.open.Set(float64(stats.OpenConnections))
	gauges.inUse.Set(float64(stats.InUse))
	gauges.idle.Set(float64(stats.Idle))
	gauges.waitCount.Set(float64(stats.WaitCount))

	return nil
}

// dbPoolNearExhaustion reports the in-use fraction of the connection pool
// and whether it crossed the warning threshold. Unlimited pools
// (MaxOpenConnections == 0) are never near exhaustion.
func dbPoolNearExhaustion(stats sql.DBStats) (float64, bool) {
	if stats.MaxOpenConnections <= 0 {
		return 0, false
	}
	ratio := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	return ratio, ratio > dbPoolExhaustionThreshold
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, intervalMS int, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}

	gauges := dbPoolStatsGauges{
		open:      metrics.DBPoolOpen,
		inUse:     metrics.DBPoolInUse,
		idle:      metrics.DBPoolIdle,
		waitCount: metrics.DBPoolWaitCount,
	}

	interval := time.Duration(intervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db, gauges); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db, gauges); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				} else if ratio, near := dbPoolNearExhaustion(db.Stats()); near {
					logger.Warn("db connection pool near exhaustion",
						"usage", fmt.Sprintf("%.0f%%", ratio*100))
				}
			}
		}
	}()
}

// resolveFeedBackend picks the cycle feed transport: Redis Streams when a
// URL is configured, the in-process feed otherwise.
func resolveFeedBackend(redisURL string, logger *slog.Logger) (redispkg.MessageTransport, bool, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return newInMemoryStreamFactory(), false, nil
	}

	feed, err := newStreamFactory(url)
	if err != nil {
		return nil, true, fmt.Errorf("initialize redis cycle feed: %w", err)
	}
	if feed == nil {
		return nil, true, fmt.Errorf("initialize redis cycle feed: backend is nil")
	}

	logger.Info("redis cycle feed enabled", "redis_url", maskCredentials(url))
	return feed, true, nil
}

func buildPriceProvider(cfg config.OracleConfig, logger *slog.Logger) oracle.PriceProvider {
	if cfg.PriceFeedURL != "" {
		return oracle.NewHTTPPriceProvider(cfg.PriceFeedURL, logger)
	}
	return &oracle.StaticPriceProvider{Price: cfg.StaticPrice}
}

// maskCredentials hides the userinfo part of a connection URL for logging.
func maskCredentials(url string) string {
	schemeEnd := strings.Index(url, "://")
	if schemeEnd < 0 {
		return url
	}
	rest := url[schemeEnd+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return url
	}
	return url[:schemeEnd+3] + "***@" + rest[at+1:]
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthChecker answers the ops-port liveness probe with a DB ping.
type healthChecker struct {
	db *sql.DB
}

func (h *healthChecker) check(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting oracle engine",
		"network", cfg.Engine.Network,
		"node_url", cfg.Mina.NodeURL,
		"archive_url", cfg.Mina.ArchiveURL,
		"contract", cfg.Mina.ContractAddress,
		"sidecar_url", cfg.Sidecar.URL,
		"db_url", maskCredentials(cfg.DB.URL),
		"participants", len(cfg.Oracle.Participants),
		"start_block", cfg.Engine.StartBlock,
		"poll_interval", cfg.Engine.PollInterval,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "oracle-engine", tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	db, err := postgres.New(postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.DB.ConnMaxIdleTime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.DB.MigrationsDir != "" {
		if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
			logger.Error("failed to run migrations", "error", err, "dir", cfg.DB.MigrationsDir)
			os.Exit(1)
		}
		logger.Info("migrations applied", "dir", cfg.DB.MigrationsDir)
	}

	feed, feedViaRedis, err := resolveFeedBackend(cfg.Redis.URL, logger)
	if err != nil {
		logger.Error("failed to initialize cycle feed", "error", err, "redis_url", maskCredentials(cfg.Redis.URL))
		os.Exit(1)
	}
	defer feed.Close()

	checkpoints := postgres.NewCheckpointRepo(db)
	rawEvents := postgres.NewRawEventRepo(db)
	vaults := postgres.NewVaultRepo(db)
	proofs := postgres.NewProofRepo(db)

	limiter := ratelimit.NewLimiter(cfg.Mina.RPCRateLimit, cfg.Mina.RPCBurst, "mina")
	chainClient := mina.NewClient(cfg.Mina.NodeURL, cfg.Mina.ArchiveURL, logger)
	adapter := mina.NewAdapter(chainClient, limiter, cfg.Mina.ContractAddress, logger)

	sidecar := rpc.NewClient(cfg.Sidecar.URL, logger)
	engineProver := prover.New(sidecar, proofs, cfg.Engine.Network, logger,
		prover.WithInitTimeout(cfg.Sidecar.InitTimeout),
		prover.WithComputeTimeout(cfg.Sidecar.ComputeTimeout),
	)

	collector, err := oracle.NewCollector(sidecar, buildPriceProvider(cfg.Oracle, logger), cfg.Oracle.Participants, cfg.Engine.Network, logger)
	if err != nil {
		logger.Error("failed to build submission collector", "error", err)
		os.Exit(1)
	}

	vaultReducer := reducer.New(vaults, cfg.Engine.Network, logger)
	eventReconciler := reconciler.New(adapter, checkpoints, rawEvents, vaultReducer, cfg.Engine.Network, logger)

	engineWorker := worker.New(
		collector,
		engineProver,
		eventReconciler,
		checkpoints,
		feed,
		db,
		uint32(cfg.Engine.StartBlock),
		cfg.Oracle.WhitelistCommitment,
		cfg.Engine.Network,
		logger,
	)

	// Canceling workerCtx is the kill switch: the orchestrator pulls it when
	// a cycle times out or the worker dies. Graceful shutdown goes through
	// Shutdown() instead so the in-flight cycle can drain.
	workerCtx, killWorker := context.WithCancel(context.Background())
	defer killWorker()
	engineWorker.Start(workerCtx)

	health := pipeline.NewEngineHealth(model.Network(cfg.Engine.Network))

	var alerters []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	alerter := alert.NewMultiAlerter(cfg.Alert.Cooldown, logger, alerters...)
	if len(alerters) == 0 {
		logger.Warn("no alert channels configured, fatal conditions will only be logged")
	}

	orch := orchestrator.New(
		adapter,
		engineWorker,
		killWorker,
		alerter,
		health,
		model.Network(cfg.Engine.Network),
		cfg.Engine.PollInterval,
		logger,
		orchestrator.WithCycleTimeout(cfg.Engine.CycleTimeout),
	)

	auditSvc := audit.NewService(rawEvents, vaults, alerter, cfg.Engine.Network, logger)

	apiServer := api.NewServer(proofs, vaults, checkpoints, logger, api.WithHealthProvider(health))
	apiLimiter := api.NewRateLimitMiddleware(logger)
	defer apiLimiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	checker := &healthChecker{db: db.DB}
	g.Go(func() error {
		return runMetricsServer(gCtx, cfg.Server.MetricsPort, checker, cfg.Server.MetricsAuthUser, cfg.Server.MetricsAuthPass, logger)
	})
	apiHandler := api.RequestLogMiddleware(logger, apiLimiter.Wrap(apiServer.Handler()))
	g.Go(func() error {
		return runAPIServer(gCtx, cfg.Server.APIPort, apiHandler, logger)
	})
	g.Go(func() error {
		return orch.Run(gCtx)
	})
	if cfg.Engine.AuditInterval > 0 {
		g.Go(func() error {
			return auditSvc.RunPeriodic(gCtx, cfg.Engine.AuditInterval)
		})
	}

	startDBPoolStatsPump(gCtx, db.DB, cfg.DB.PoolStatsIntervalMS, logger)

	logger.Info("oracle engine started", "feed_via_redis", feedViaRedis)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	waitErr := g.Wait()

	engineWorker.Shutdown()
	select {
	case <-engineWorker.Done():
	case <-time.After(workerDrainTimeout):
		logger.Warn("worker did not drain in time")
	}

	if waitErr != nil && waitErr != context.Canceled {
		logger.Error("oracle engine exited with error", "error", waitErr)
		os.Exit(1)
	}

	logger.Info("oracle engine shut down gracefully")
}

func runMetricsServer(ctx context.Context, port int, checker *healthChecker, authUser, authPass string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := checker.check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})

	var metricsHandler http.Handler = promhttp.Handler()
	if authUser != "" && authPass != "" {
		metricsHandler = basicAuthMiddleware(authUser, authPass, metricsHandler)
	}
	mux.Handle("/metrics", metricsHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func runAPIServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("api server shutdown error", "error", err)
		}
	}()

	logger.Info("query api server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
