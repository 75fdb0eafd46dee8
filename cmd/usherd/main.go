package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/usher/pkg/api"
	"github.com/psantana5/usher/pkg/auth"
	"github.com/psantana5/usher/pkg/cleanup"
	"github.com/psantana5/usher/pkg/logging"
	"github.com/psantana5/usher/pkg/metrics"
	"github.com/psantana5/usher/pkg/notify"
	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/ratelimit"
	"github.com/psantana5/usher/pkg/shutdown"
	"github.com/psantana5/usher/pkg/store"
	usersync "github.com/psantana5/usher/pkg/sync"
	tlsutil "github.com/psantana5/usher/pkg/tls"
	"github.com/psantana5/usher/pkg/tracing"
)

// version is overridden at build time via -ldflags "-X main.version=..."
var version = "0.3.1"

// envOr reads an environment variable with a fallback, so container
// deployments can configure the daemon without editing the command line.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Command-line flags
	listen := flag.String("listen", envOr("USHER_LISTEN", ":8080"), "API listen address (default: USHER_LISTEN env var or :8080)")
	storeType := flag.String("store", envOr("USHER_STORE", "sqlite"), "Store backend: sqlite, postgres or memory")
	dbPath := flag.String("db", envOr("USHER_DB", "usher.db"), "SQLite database path (default: USHER_DB env var or usher.db)")
	pgDSN := flag.String("pg-dsn", os.Getenv("USHER_PG_DSN"), "PostgreSQL DSN (overrides the discrete pg-* flags)")
	pgHost := flag.String("pg-host", envOr("USHER_PG_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", envOr("USHER_PG_USER", "usher"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", os.Getenv("USHER_PG_PASSWORD"), "PostgreSQL password (default: USHER_PG_PASSWORD env var)")
	pgDBName := flag.String("pg-dbname", envOr("USHER_PG_DBNAME", "usher"), "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL sslmode")
	apiKey := flag.String("api-key", os.Getenv("USHER_API_KEY"), "Bootstrap admin API key (default: USHER_API_KEY env var)")
	syncInterval := flag.Duration("sync-interval", 15*time.Minute, "Interval between scheduled syncs, 0 disables the scheduler")
	syncWorkers := flag.Int("sync-workers", 3, "Concurrent store writers during a sync run")
	syncTimeout := flag.Duration("sync-timeout", 10*time.Minute, "Budget for a single sync run")
	retentionDays := flag.Int("retention-days", 30, "Days of sync run history to keep, 0 disables cleanup")
	cleanupInterval := flag.Duration("cleanup-interval", 6*time.Hour, "Interval between history cleanup passes")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Emit structured logs as JSON")
	logToFile := flag.Bool("log-to-file", false, "Also write logs to /var/log/usher (falls back to ./logs)")
	notifyConfig := flag.String("notify-config", "", "YAML file describing notification backends")
	rateRPS := flag.Float64("rate-rps", 10, "Per-key API request rate limit")
	rateBurst := flag.Int("rate-burst", 30, "Rate limit burst size")
	enableMetrics := flag.Bool("metrics", true, "Enable the Prometheus metrics endpoint")
	metricsListen := flag.String("metrics-listen", ":9090", "Metrics listen address")
	enableTracing := flag.Bool("tracing", false, "Enable OpenTelemetry tracing")
	tracingEndpoint := flag.String("tracing-endpoint", "localhost:4318", "OTLP HTTP collector endpoint")
	useTLS := flag.Bool("tls", false, "Serve the API over TLS")
	tlsSelfSigned := flag.Bool("tls-self-signed", false, "Generate a self-signed certificate even when the configured files exist")
	tlsCert := flag.String("tls-cert", "certs/usher-cert.pem", "TLS certificate file")
	tlsKey := flag.String("tls-key", "certs/usher-key.pem", "TLS key file")
	tlsClientCA := flag.String("tls-client-ca", "", "CA bundle for mTLS client verification")
	tlsHosts := flag.String("tls-hosts", "", "Comma-separated extra SANs for a generated certificate")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("usherd %s\n", version)
		return
	}

	log.Printf("Starting usherd %s", version)
	log.Printf("Listen: %s", *listen)
	log.Printf("Sync interval: %s", *syncInterval)

	var logger *logging.Logger
	if *logToFile {
		fileLogger, lerr := logging.NewFileLogger("usherd", logging.ParseLevel(*logLevel), *logJSON)
		if lerr != nil {
			log.Fatalf("Failed to open log file: %v", lerr)
		}
		logger = fileLogger
		defer logger.Close()
	} else {
		logger = logging.NewLogger(logging.ParseLevel(*logLevel), *logJSON)
	}

	shut := shutdown.New(30 * time.Second)

	// Store
	st, err := store.NewStore(store.Config{
		Type:     *storeType,
		Path:     *dbPath,
		DSN:      *pgDSN,
		Host:     *pgHost,
		Port:     *pgPort,
		User:     *pgUser,
		Password: *pgPassword,
		DBName:   *pgDBName,
		SSLMode:  *pgSSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	shut.Register(shutdown.CloseResource(st, "store"))
	switch *storeType {
	case "memory":
		log.Println("WARNING: Using in-memory store (data will not persist)")
	case "postgres", "postgresql":
		log.Printf("✓ PostgreSQL storage enabled (%s)", *pgDBName)
	default:
		log.Printf("✓ SQLite storage enabled (%s)", *dbPath)
	}

	// Bootstrap authentication. Without a configured key and with an
	// empty key table the service would be unreachable, so a one-session
	// admin key is generated and printed once.
	bootstrapKey := *apiKey
	if bootstrapKey == "" {
		keys, kerr := st.ListAPIKeys()
		if kerr != nil {
			log.Fatalf("Failed to list API keys: %v", kerr)
		}
		if len(keys) == 0 {
			generated, gerr := auth.GenerateKey()
			if gerr != nil {
				log.Fatalf("Failed to generate bootstrap key: %v", gerr)
			}
			bootstrapKey = generated
			log.Println("WARNING: No API key configured and none stored")
			log.Printf("Generated bootstrap admin key for this session: %s", generated)
			log.Println("Mint a persistent key with: usher apikeys create --name admin --role admin")
		} else {
			log.Printf("✓ API authentication enabled (%d stored keys)", len(keys))
		}
	} else {
		log.Println("✓ Bootstrap API key enabled")
	}

	// Metrics
	recorder := metrics.NewRecorder()
	exporter := metrics.NewExporter(st)
	exporter.StartSampling(shut.Done(), 15*time.Second)
	if n, cerr := st.CountUsers(); cerr == nil {
		recorder.SetUserCount(n)
	}
	if libs, lerr := st.ListLibraries(); lerr == nil {
		recorder.SetLibraryCount(len(libs))
	}

	// Tracing
	provider, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "usherd",
		ServiceVersion: version,
		Environment:    os.Getenv("USHER_ENV"),
		OTLPEndpoint:   *tracingEndpoint,
		Enabled:        *enableTracing,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	shut.Register(provider.Shutdown)
	if *enableTracing {
		log.Printf("✓ Tracing enabled (%s)", *tracingEndpoint)
	}

	// Notifications
	notifier, err := notify.FromConfig(*notifyConfig, logger)
	if err != nil {
		log.Fatalf("Failed to load notification config: %v", err)
	}

	// Sync engine. The client factory re-reads the stored connection
	// settings on every run and feeds request metrics to the recorder.
	factory := func(ctx context.Context) (*plex.Client, error) {
		client, cerr := plex.FromSettings(st)
		if cerr != nil {
			return nil, cerr
		}
		client.SetObserver(recorder.RecordPlexRequest)
		return client, nil
	}

	engineCfg := usersync.DefaultConfig()
	engineCfg.Workers = *syncWorkers
	engineCfg.Timeout = *syncTimeout
	engine := usersync.NewEngine(engineCfg, usersync.Deps{
		Store:    st,
		Clients:  factory,
		Logger:   logger,
		Recorder: recorder,
		Notifier: notifier,
	})
	shut.Register(engine.Close)

	if recovered, rerr := engine.RecoverStale(); rerr != nil {
		log.Printf("Failed to recover stale sync runs: %v", rerr)
	} else if recovered > 0 {
		log.Printf("✓ Recovered %d stale sync runs", recovered)
	}

	// Scheduler
	scheduler := usersync.NewScheduler(engine, *syncInterval)
	scheduler.Start()
	shut.Register(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})

	// History cleanup
	cleaner := cleanup.NewManager(cleanup.Config{
		Enabled:         *retentionDays > 0,
		RetentionDays:   *retentionDays,
		CleanupInterval: *cleanupInterval,
		VacuumInterval:  7 * 24 * time.Hour,
	}, st)
	cleaner.Start()
	shut.Register(func(ctx context.Context) error {
		cleaner.Stop()
		return nil
	})

	// Rate limiting
	limiter := ratelimit.NewLimiter(*rateRPS, *rateBurst)
	limiter.StartCleanup(shut.Done(), 10*time.Minute, time.Hour)

	// API handler and router
	handler := api.NewHandler(api.Config{
		Store:     st,
		Engine:    engine,
		Scheduler: scheduler,
		Clients:   factory,
		Recorder:  recorder,
		Version:   version,
	})

	router := mux.NewRouter()
	if *enableTracing {
		router.Use(tracing.HTTPMiddleware(provider))
	}
	router.Use(recorder.Middleware)
	router.Use(func(next http.Handler) http.Handler {
		protected := limiter.Middleware(ratelimit.APIKeyFunc)(auth.Middleware(st, bootstrapKey)(next))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health stays open for load balancer probes
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	})
	handler.RegisterRoutes(router)

	// Metrics server on its own port, outside API auth
	if *enableMetrics {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", exporter).Methods("GET")
		metricsRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}).Methods("GET")

		metricsSrv := &http.Server{
			Addr:         *metricsListen,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Metrics server listening on %s", *metricsListen)
			if serr := metricsSrv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", serr)
			}
		}()
		shut.Register(shutdown.StopHTTPServer(metricsSrv, "metrics"))
	}

	// Main API server
	srv := &http.Server{
		Addr:         *listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if *useTLS {
		log.Println("✓ TLS enabled")
		_, statErr := os.Stat(*tlsCert)
		if *tlsSelfSigned || os.IsNotExist(statErr) {
			if os.IsNotExist(statErr) {
				log.Printf("Certificate file not found: %s", *tlsCert)
			}
			log.Println("Generating self-signed certificate...")

			var hosts []string
			for _, h := range strings.Split(*tlsHosts, ",") {
				if h = strings.TrimSpace(h); h != "" {
					hosts = append(hosts, h)
				}
			}

			certPath, keyPath, gerr := tlsutil.GenerateSelfSigned(filepath.Dir(*tlsCert), hosts)
			if gerr != nil {
				log.Fatalf("Failed to generate certificate: %v", gerr)
			}
			*tlsCert, *tlsKey = certPath, keyPath
			log.Println("✓ Self-signed certificate generated")
		}

		tlsConfig, terr := tlsutil.LoadTLSConfig(*tlsCert, *tlsKey, *tlsClientCA)
		if terr != nil {
			log.Fatalf("Failed to load TLS config: %v", terr)
		}
		srv.TLSConfig = tlsConfig
		if *tlsClientCA != "" {
			log.Println("✓ mTLS enabled - requiring client certificates")
		}
	}
	shut.Register(shutdown.StopHTTPServer(srv, "api"))

	go func() {
		log.Printf("API server listening on %s", *listen)
		log.Println("API endpoints:")
		log.Println("  GET    /health")
		log.Println("  GET    /status")
		log.Println("  GET    /users")
		log.Println("  GET    /libraries")
		log.Println("  POST   /libraries/scan")
		log.Println("  GET    /settings")
		log.Println("  POST   /settings/validate")
		log.Println("  POST   /sync")
		log.Println("  GET    /sync/runs")
		log.Println("  POST   /apikeys")

		var serr error
		if *useTLS {
			serr = srv.ListenAndServeTLS("", "")
		} else {
			serr = srv.ListenAndServe()
		}
		if serr != nil && serr != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", serr)
		}
	}()

	shut.Wait()
	shut.Shutdown()
	log.Println("Server stopped")
}
