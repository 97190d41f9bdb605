package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/action"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/actuator"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/classifier"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/httpserver"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/postgres"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/redis"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/websocket"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/app"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/consent"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/conversation"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/normalize"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/config"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/crypto"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/logging"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/version"
)

const (
	evictionInterval = time.Minute
	shutdownTimeout  = 10 * time.Second

	sweeperLeaderKey = "neurosync:sweeper:leader"
)

// backends holds the optional external stores and the cleanup they need.
type backends struct {
	pool  *pgxpool.Pool
	redis *goredis.Client
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b backends) healthChecks() []httpserver.HealthCheck {
	var checks []httpserver.HealthCheck
	if b.redis != nil {
		checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return b.redis.Ping(ctx).Err()
		}})
	}
	if b.pool != nil {
		checks = append(checks, httpserver.HealthCheck{Name: "postgres", Check: b.pool.Ping})
	}
	return checks
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(metrics.NewDBMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(metrics.NewRedisMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupConsent(stores backends, clock clockwork.Clock) (*consent.Ledger, func()) {
	if stores.pool == nil {
		slog.Warn("DATABASE_URL not set, consent records are kept in memory")
		ledger := consent.NewLedger(consent.NewMemoryStore(), clock, consent.DefaultCacheTTL)
		return ledger, ledger.StartEvictionTimer(evictionInterval)
	}

	store := postgres.NewConsentRepo(stores.pool)
	if stores.redis == nil {
		slog.Warn("REDIS_URL not set, consent reads bypass the cache")
		return consent.NewLedger(store, clock, consent.DefaultCacheTTL, consent.WithoutCache()), func() {}
	}

	ledger := consent.NewLedger(store, clock, consent.DefaultCacheTTL,
		consent.WithPublisher(redis.NewConsentInvalidationPublisher(stores.redis)))
	stopEviction := ledger.StartEvictionTimer(evictionInterval)

	ctx, cancel := context.WithCancel(context.Background())
	subscriber := redis.NewConsentInvalidationSubscriber(stores.redis, ledger)
	go subscriber.Start(ctx)

	select {
	case <-subscriber.Ready():
	case <-time.After(10 * time.Second):
		slog.Error("Consent invalidation subscription not confirmed")
		os.Exit(1)
	}

	return ledger, func() {
		cancel()
		stopEviction()
	}
}

func setupConversations(cfg *config.Config, stores backends, clock clockwork.Clock, reg prometheus.Registerer) (domain.ConversationStore, func()) {
	if stores.redis == nil {
		slog.Warn("REDIS_URL not set, conversation state is kept in memory")
		return conversation.NewMemoryStore(), func() {}
	}

	cipher, err := crypto.New(cfg.ConversationEncryptionKey)
	if err != nil {
		slog.Error("Failed to create conversation cipher", "error", err)
		os.Exit(1)
	}
	storeMetrics := metrics.NewStoreMetrics(reg)
	store := redis.NewConversationStore(stores.redis, cipher, cfg.ConversationTTL, storeMetrics)

	// Sweeping requires shared consent and shared conversations.
	if stores.pool == nil || cfg.ConversationSweepInterval == 0 {
		return store, func() {}
	}
	elector := redis.NewLeaderElector(stores.redis, sweeperLeaderKey, instanceID(), 2*cfg.ConversationSweepInterval)
	sweeper := app.NewSweeper(store, postgres.NewConsentRepo(stores.pool), elector, storeMetrics, clock, cfg.ConversationSweepInterval)
	go sweeper.Start(context.Background())
	return store, sweeper.Stop
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func setupActuators(cfg *config.Config, reg prometheus.Registerer) (map[domain.DeviceFamily]domain.PrimaryActuator, []httpserver.ActuatorBreaker) {
	endpoints := []actuator.Config{
		{Family: domain.FamilyLighting, BaseURL: cfg.LightingURL, Token: cfg.LightingToken},
		{Family: domain.FamilyMusic, BaseURL: cfg.MusicURL, Token: cfg.MusicToken},
		{Family: domain.FamilyNotification, BaseURL: cfg.NotificationURL, Token: cfg.NotificationToken},
	}

	breakerMetrics := metrics.NewBreakerMetrics(reg)
	primaries := make(map[domain.DeviceFamily]domain.PrimaryActuator)
	var breakers []httpserver.ActuatorBreaker
	for _, ep := range endpoints {
		if ep.BaseURL == "" {
			continue
		}
		a, err := actuator.New(ep, breakerMetrics)
		if err != nil {
			slog.Error("Failed to create actuator", "family", ep.Family, "error", err)
			os.Exit(1)
		}
		primaries[ep.Family] = a
		breakers = append(breakers, httpserver.ActuatorBreaker{
			Family: string(ep.Family),
			State:  func() string { return a.State().String() },
		})
		slog.Info("Primary actuator configured", "family", ep.Family)
	}
	return primaries, breakers
}

func setupClassifier(cfg *config.Config) domain.TextClassifier {
	if cfg.ClassifierURL == "" {
		return nil
	}
	return classifier.New(cfg.ClassifierURL, cfg.ClassifierTimeout)
}

func setupNode(cfg *config.Config, rdb *goredis.Client, reg prometheus.Registerer) (*centrifuge.Node, *metrics.WebSocketMetrics) {
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	node, err := websocket.NewNode(wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if rdb != nil {
		if err := websocket.SetupRedis(node, rdb.Options().Addr); err != nil {
			slog.Error("Failed to set up centrifuge redis broker", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}
	return node, wsMetrics
}

func runGracefulShutdown(srv *httpserver.Server, node *centrifuge.Node) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	ctx := context.Background()
	reg := metrics.NewRegistry()

	stores := backends{
		pool:  setupDB(ctx, cfg, reg),
		redis: setupRedis(ctx, cfg, reg),
	}
	defer stores.Close()

	ledger, stopConsent := setupConsent(stores, clock)
	defer stopConsent()

	conversations, stopConversationEviction := setupConversations(cfg, stores, clock, reg)
	defer stopConversationEviction()

	primaries, breakers := setupActuators(cfg, reg)
	orchestrator := action.NewOrchestrator(primaries, action.NewSimulator(clock), cfg.ActuatorTimeout)

	node, wsMetrics := setupNode(cfg, stores.redis, reg)

	appSvc := app.NewService(
		ledger,
		normalize.NewNormalizer(setupClassifier(cfg)),
		conversations,
		orchestrator,
		websocket.NewBroadcaster(node, wsMetrics),
		metrics.NewPipelineMetrics(reg),
		clock,
		app.Options{Weights: cfg.FusionWeights(), HistorySize: cfg.ConversationHistorySize},
	)

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
	})

	srv := httpserver.NewServer(cfg, appSvc, httpserver.Options{
		WebsocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(reg),
		HTTPMetrics:      metrics.NewHTTPMetrics(reg),
		HealthChecks:     stores.healthChecks(),
		Actuators:        breakers,
	})

	done := runGracefulShutdown(srv, node)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
