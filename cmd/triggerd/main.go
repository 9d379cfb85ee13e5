package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/daybreak-labs/triggerd/internal/analytics"
	"github.com/daybreak-labs/triggerd/internal/api"
	"github.com/daybreak-labs/triggerd/internal/circuitbreaker"
	"github.com/daybreak-labs/triggerd/internal/config"
	"github.com/daybreak-labs/triggerd/internal/dispatch"
	"github.com/daybreak-labs/triggerd/internal/executor"
	"github.com/daybreak-labs/triggerd/internal/metrics"
	"github.com/daybreak-labs/triggerd/internal/registry"
	"github.com/daybreak-labs/triggerd/internal/scheduler"
	"github.com/daybreak-labs/triggerd/internal/store/file"
	"github.com/daybreak-labs/triggerd/internal/webhook"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`triggerd - webhook and schedule trigger engine

Usage:
  triggerd <command>

Commands:
  serve      Start the trigger engine and HTTP server
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATA_DIR                   Directory for persisted definitions (default: "data")
  HTTP_ADDR                  HTTP server address (default: ":8080")
  TICK_INTERVAL              Scheduler tick interval (default: "30s")

  EXECUTOR_BASE_URL          Downstream executor base URL (optional; dry-run when unset)
  EXECUTOR_TOKEN             Bearer token for executor calls (optional)
  EXECUTOR_TIMEOUT           Per-call executor timeout (default: "30s")

  REDIS_ADDR                 Redis address for analytics (optional)
  ANALYTICS_WINDOW           Analytics counter bucket size (default: "1h")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  CIRCUIT_BREAKER_THRESHOLD  Consecutive failures before tripping (default: "5", "0" disables)
  CIRCUIT_BREAKER_COOLDOWN   Open-circuit cooldown (default: "2m")`)
}

// logConfigWarnings flags configurations that run but degrade the
// engine's guarantees.
func logConfigWarnings(cfg *config.Config) {
	if cfg.ExecutorBaseURL == "" {
		log.Println("triggerd: WARNING: EXECUTOR_BASE_URL not set; triggers will be logged, not executed")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("triggerd: WARNING: CIRCUIT_BREAKER_THRESHOLD=0; a dead executor will hold every firing for the full timeout")
	}
	if !cfg.MetricsEnabled {
		log.Println("triggerd: METRICS_ENABLED not set; metrics disabled")
	}
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	store, err := file.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open data dir: %v\n", err)
		return exitRuntimeError
	}

	reg, err := registry.New(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load registry: %v\n", err)
		return exitRuntimeError
	}
	log.Printf("triggerd: loaded %d webhooks, %d schedules from %s",
		len(reg.ListWebhooks()), len(reg.ListSchedules()), cfg.DataDir)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("triggerd: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	// Wire the downstream executor. Without a base URL the engine
	// runs in dry-run mode and only logs what it would have done.
	var exec dispatch.Executor
	if cfg.ExecutorBaseURL != "" {
		threshold := cfg.CircuitBreakerThreshold
		if threshold == 0 {
			threshold = 1 << 30 // effectively never trips
		}
		breaker := circuitbreaker.New(threshold, cfg.CircuitBreakerCooldown)
		exec = executor.NewClient(cfg.ExecutorBaseURL, breaker).
			WithTimeout(cfg.ExecutorTimeout).
			WithToken(cfg.ExecutorToken)
		log.Printf("triggerd: executor at %s (timeout=%s)", cfg.ExecutorBaseURL, cfg.ExecutorTimeout)
	} else {
		exec = executor.LogExecutor{}
	}

	disp := dispatch.New(exec)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	pipeline := webhook.NewPipeline(reg, disp)
	if metricsSink != nil {
		pipeline = pipeline.WithMetrics(metricsSink)
	}

	sched := scheduler.New(scheduler.Config{TickInterval: cfg.TickInterval}, reg, disp)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	apiHandler := api.NewHandler(reg, pipeline)

	// Wire analytics if Redis is configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		disp = disp.WithAnalytics(analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow))
		apiHandler = apiHandler.WithHealthChecker(redisPinger{redisClient})
		log.Printf("triggerd: analytics enabled (redis=%s, window=%s)", cfg.RedisAddr, cfg.AnalyticsWindow)
	} else {
		log.Println("triggerd: REDIS_ADDR not set; analytics disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler)
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("triggerd: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("triggerd: http server error: %v", err)
		}
	}()

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())

	var schedulerWg sync.WaitGroup
	schedulerWg.Add(1)
	go func() {
		defer schedulerWg.Done()
		sched.Run(schedulerCtx)
	}()

	log.Printf("triggerd: started (tick=%s, http=%s)", cfg.TickInterval, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("triggerd: received signal %v, shutting down", received)

	// Phase 1: stop the scheduler so no new firings start.
	log.Println("triggerd: stopping scheduler...")
	cancelScheduler()
	schedulerWg.Wait()
	log.Println("triggerd: scheduler stopped")

	// Phase 2: stop the HTTP server; in-flight deliveries finish
	// within the shutdown timeout.
	log.Println("triggerd: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("triggerd: http server shutdown error: %v", err)
	}
	log.Println("triggerd: http server stopped")

	// Phase 3: close the analytics connection.
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("triggerd: redis close error: %v", err)
		}
	}

	log.Println("triggerd: stopped")
	return exitSuccess
}

// redisPinger adapts the redis client to the api health probe.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("triggerd version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
