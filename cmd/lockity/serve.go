// cmd/lockity/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/alert"
	"github.com/dangerclosesec/lockity/internal/audit"
	"github.com/dangerclosesec/lockity/internal/auth"
	"github.com/dangerclosesec/lockity/internal/config"
	"github.com/dangerclosesec/lockity/internal/email"
	"github.com/dangerclosesec/lockity/internal/eventstore"
	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/handler"
	"github.com/dangerclosesec/lockity/internal/notify"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/dangerclosesec/lockity/internal/service"
	"github.com/dangerclosesec/lockity/internal/storage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event fan-out worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), config.Load())
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := setupDatabase(cfg, verbose)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}
	store := repository.NewStore(db)

	events, err := eventstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting event store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := events.Close(closeCtx); err != nil {
			logger.Warn("closing event store", "error", err)
		}
	}()

	var alerter alert.Sink = alert.NewLogSink(logger)
	if cfg.Slack.WebhookURL != "" {
		alerter = alert.NewSlackWebhook(cfg.Slack.WebhookURL, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	processor := fanout.NewProcessor(events,
		fanout.WithAlerter(alerter),
		fanout.WithLogger(logger),
		fanout.WithMetrics(fanout.NewMetrics(registry)),
		fanout.WithMaxPending(cfg.FanOut.MaxPending),
		fanout.WithBatchTimeout(cfg.FanOut.BatchTimeout),
		fanout.WithNotifier(setupNotifier(ctx, cfg, store)),
	)
	processor.Start()

	resolver := access.NewResolver(store.Roles, store.Organizations,
		access.WithLogger(logger),
		access.WithCache(setupRoleCache(ctx, cfg)),
	)

	provider := email.ProviderSMTP
	if cfg.Sendgrid.APIKey != "" {
		provider = email.ProviderSendgrid
	}
	mailer, err := email.NewEmailService(cfg, provider)
	if err != nil {
		return fmt.Errorf("initializing email service: %w", err)
	}

	engine := service.NewEngine(store, resolver, audit.NewFanoutRecorder(processor), alerter, logger)
	lockers := service.NewLockerService(engine)
	handlers := &handler.Handlers{
		Organizations: handler.NewOrganizationHandler(service.NewOrganizationService(engine, service.NewAllocator(store))),
		Lockers:       handler.NewLockerHandler(service.NewGrantManager(engine, mailer, cfg.BaseURL+"/signup"), lockers, resolver),
		Schedules:     handler.NewScheduleHandler(service.NewScheduleService(engine)),
		Devices:       handler.NewDeviceHandler(service.NewDeviceTokenService(engine), service.NewLockerLogService(engine, processor), lockers),
	}
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpiryPeriod)

	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		stats := processor.Stats()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","fanout_pending":%d,"fanout_draining":%t}`, stats.Pending, stats.Draining)
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Mount("/api", handlers.Routes(tokenManager, cfg.IoT.APIKey))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutdown started", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			runErr = fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	// Requests have stopped producing events; flush what is queued.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.FanOut.ShutdownGrace)
	defer cancel()
	if err := processor.Shutdown(drainCtx); err != nil {
		logger.Error("event fan-out did not drain", "error", err)
		runErr = errors.Join(runErr, err)

		// The event store closes on return; let the batch in flight finish first.
		waitCtx, cancelWait := context.WithTimeout(context.Background(), cfg.FanOut.BatchTimeout)
		defer cancelWait()
		if err := processor.Wait(waitCtx); err != nil {
			logger.Error("in-flight fan-out batch lost at shutdown", "error", err)
		}
	} else {
		logger.Info("event fan-out drained")
	}

	return runErr
}

// setupNotifier returns nil when push delivery is not configured.
func setupNotifier(ctx context.Context, cfg *config.Config, store *repository.Store) fanout.Notifier {
	if cfg.Firebase.CredentialsFile == "" {
		logger.Warn("push notifications disabled: no firebase credentials configured")
		return nil
	}
	dispatcher, err := notify.NewFCMDispatcher(ctx, cfg.Firebase.CredentialsFile, logger)
	if err != nil {
		logger.Error("push notifications disabled", "error", err)
		return nil
	}

	opts := []func(*notify.ActivityNotifier){notify.WithLogger(logger)}
	if cfg.S3.Bucket != "" {
		presigner, err := storage.NewPresigner(ctx, storage.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			Expiry:    cfg.S3.PresignExpiry,
		})
		if err != nil {
			logger.Warn("notification images disabled", "error", err)
		} else {
			opts = append(opts, notify.WithImages(presigner))
		}
	}
	return notify.NewActivityNotifier(store.Lockers, store.DeviceTokens, dispatcher, opts...)
}

// setupRoleCache returns nil when no Redis address is configured.
func setupRoleCache(ctx context.Context, cfg *config.Config) access.RoleCache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("role cache disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}
	return access.NewRedisRoleCache(client, cfg.Redis.RoleCacheTTL)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"duration", time.Since(start),
					"status", ww.Status(),
					"size", ww.BytesWritten(),
					"requestID", chimw.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						"panic", rvr,
						"stack", string(debug.Stack()),
						"requestID", chimw.GetReqID(r.Context()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"ok":false,"error":"Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
