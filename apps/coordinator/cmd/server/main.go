// Package main contains the coordinator service entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"streamlation/packages/backend/di"
	"streamlation/packages/backend/translation"
)

const defaultListenAddr = ":8090"

func main() {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	app := &cli.App{
		Name:  "coordinator",
		Usage: "runs the real-time streaming translation coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: getListenAddr(), EnvVars: []string{"COORDINATOR_LISTEN_ADDR"}},
			&cli.StringFlag{Name: "redis-addr", Value: getRedisAddr(), EnvVars: []string{"COORDINATOR_REDIS_ADDR"}},
			&cli.StringFlag{Name: "config", Usage: "path to a YAML file of launch-time RuntimeConfig defaults", EnvVars: []string{"COORDINATOR_CONFIG_FILE"}},
		},
		Action: func(c *cli.Context) error {
			return runServer(c.String("listen"), c.String("redis-addr"), c.String("config"), logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatalw("server exited with error", "error", err)
	}
}

func runServer(listenAddr, redisAddr, configPath string, logger *zap.SugaredLogger) error {
	initialConfig, err := loadInitialConfig(configPath)
	if err != nil {
		return err
	}

	container := di.NewContainer(
		di.WithLogger(logger),
		di.WithTranslator(translation.NewStubTranslator(nil)),
	)
	sessions := newSessionRegistry(container, redisAddr, logger)
	sessions.initialConfig = initialConfig

	mux := http.NewServeMux()
	mux.Handle("/healthz", healthHandler(logger))
	mux.HandleFunc("/sessions/{id}/stt", sessions.sttIngestHandler)
	mux.HandleFunc("/sessions/{id}/ui", sessions.uiDeliveryHandler)
	mux.HandleFunc("/sessions/{id}/config", sessions.configUpdateHandler)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-shutdown
	logger.Infow("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions.teardownAll()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
		if closeErr := server.Close(); closeErr != nil {
			logger.Errorw("forced close failed", "error", closeErr)
		}
	}
	return nil
}

func getListenAddr() string {
	if addr := os.Getenv("COORDINATOR_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return defaultListenAddr
}

func getRedisAddr() string {
	return os.Getenv("COORDINATOR_REDIS_ADDR")
}

func healthHandler(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, `{"status":"ok"}`); err != nil {
			logger.Errorw("failed to write health response", "error", err)
		}
	}
}

func loggingMiddleware(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		logger.Infow("request", "method", r.Method, "path", r.URL.Path, "status", lrw.statusCode, "duration", time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(statusCode int) {
	lrw.statusCode = statusCode
	lrw.ResponseWriter.WriteHeader(statusCode)
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if level := os.Getenv("COORDINATOR_LOG_LEVEL"); level != "" {
		if parsed, err := zap.ParseAtomicLevel(level); err == nil {
			cfg.Level = parsed
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.Sugar()
}
