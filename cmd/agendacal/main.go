package main

import (
	"context"
	"database/sql"
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
	"github.com/rs/cors"

	"agendacal/internal/analytics"
	"agendacal/internal/api"
	"agendacal/internal/auth"
	"agendacal/internal/circuitbreaker"
	"agendacal/internal/config"
	"agendacal/internal/engine"
	"agendacal/internal/metrics"
	"agendacal/internal/notify"
	"agendacal/internal/resync"
	"agendacal/internal/store/postgres"
	"agendacal/internal/transport/channel"

	_ "github.com/lib/pq"
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
	fmt.Println(`agendacal - shared calendar scheduling service

Usage:
  agendacal <command>

Commands:
  serve      Start the scheduling engine and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for creation analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  JWT_SECRET                HS256 secret for bearer tokens (required)

  NOTIFY_URL                Notification service endpoint; also serves the
                            participant directory (optional)
  NOTIFY_TOKEN              Service credential for directory fetches
  NOTIFY_TIMEOUT            Notification request timeout (default: "10s")
  NOTIFY_BUFFER_SIZE        Notification queue capacity (default: "100")
  NOTIFY_DRAIN_TIMEOUT      Shutdown drain timeout (default: "30s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  CORS_ALLOWED_ORIGINS      Comma-separated origins (default: none)

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  RESYNC_ENABLED            Periodic store resync (default: "true")
  RESYNC_INTERVAL           Resync interval (default: "1m")
  RESYNC_DIRECTORY_EVERY    Directory refresh every N cycles (default: "10")

  CIRCUIT_BREAKER_THRESHOLD Failures before the notify circuit opens
                            (default: "5", "0" disables)
  CIRCUIT_BREAKER_COOLDOWN  Open-circuit cooldown (default: "2m")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("agendacal: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)
	if err := store.EnsureSchema(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("agendacal: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("agendacal: METRICS_ENABLED not set; metrics disabled")
	}

	// Notification bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewBus(cfg.NotifyBufferSize, busOpts...)

	// Participant directory: the notification service doubles as the
	// directory when configured, otherwise the local users table serves.
	var directory engine.Directory = store
	var mailer *notify.HTTPMailer
	if cfg.NotifyURL != "" {
		mailer = notify.NewHTTPMailer(cfg.NotifyURL, cfg.NotifyTimeout)
		directory = notify.NewServiceDirectory(mailer, cfg.NotifyToken)
		log.Printf("agendacal: participant directory served by notification service")
	} else {
		log.Println("agendacal: NOTIFY_URL not set; participant directory served by local store")
	}

	eng := engine.New(store, directory, bus)
	if metricsSink != nil {
		eng = eng.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		eng = eng.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("agendacal: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("agendacal: REDIS_ADDR not set; analytics disabled")
	}

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = eng.Load(loadCtx)
	loadCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load calendar: %v\n", err)
		return exitRuntimeError
	}

	// HTTP API
	provider := auth.NewJWTProvider(cfg.JWTSecret)
	router := api.NewHandler(eng, provider).WithHealthChecker(db).Router()
	if metricsSink != nil {
		router.Handle(cfg.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(router)
		log.Printf("agendacal: cors enabled for %d origins", len(cfg.CORSAllowedOrigins))
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("agendacal: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("agendacal: http server error: %v", err)
		}
	}()

	// Separate contexts for the resync loop and dispatcher enable ordered
	// shutdown: producers stop before the dispatcher drains.
	resyncCtx, cancelResync := context.WithCancel(context.Background())
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())

	var resyncWg sync.WaitGroup
	var dispatcherWg sync.WaitGroup

	if cfg.ResyncEnabled {
		loop := resync.New(resync.Config{
			Interval:       cfg.ResyncInterval,
			DirectoryEvery: cfg.ResyncDirectoryEvery,
		}, eng)
		resyncWg.Add(1)
		go func() {
			defer resyncWg.Done()
			loop.Run(resyncCtx)
		}()
	} else {
		log.Println("agendacal: RESYNC_ENABLED=false; resync disabled")
	}

	dispatcherWg.Add(1)
	if mailer != nil {
		disp := notify.NewDispatcher(mailer).WithDrainTimeout(cfg.NotifyDrainTimeout)
		if cfg.CircuitBreakerThreshold > 0 {
			disp = disp.WithBreaker(circuitbreaker.New(
				cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
			log.Printf("agendacal: notify circuit breaker enabled (threshold=%d, cooldown=%s)",
				cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		}
		if metricsSink != nil {
			disp = disp.WithMetrics(metricsSink)
		}
		go func() {
			defer dispatcherWg.Done()
			disp.Run(dispatcherCtx, bus.Channel())
		}()
	} else {
		log.Println("agendacal: NOTIFY_URL not set; notifications disabled")
		// Keep the bus from filling up while notifications are off.
		go func() {
			defer dispatcherWg.Done()
			for {
				select {
				case <-dispatcherCtx.Done():
					return
				case <-bus.Channel():
				}
			}
		}()
	}

	log.Printf("agendacal: started (http=%s)", cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("agendacal: received signal %v, shutting down", received)

	// Phase 1: Stop accepting HTTP requests (no new notification producers)
	log.Println("agendacal: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("agendacal: http server shutdown error: %v", err)
	}
	log.Println("agendacal: http server stopped")

	// Phase 2: Stop the resync loop
	log.Println("agendacal: stopping resync loop...")
	cancelResync()
	resyncWg.Wait()
	log.Println("agendacal: resync loop stopped")

	// Phase 3: Stop the dispatcher (drains buffered notifications)
	log.Println("agendacal: stopping dispatcher (draining notifications)...")
	cancelDispatcher()
	dispatcherWg.Wait()
	log.Println("agendacal: dispatcher stopped")

	log.Println("agendacal: stopped")
	return exitSuccess
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
	fmt.Printf("agendacal version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
