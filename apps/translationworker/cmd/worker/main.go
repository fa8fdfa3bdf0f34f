// Package main contains the translation worker service entry point.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"streamlation/packages/backend/queue"
	"streamlation/packages/backend/translation"
)

const defaultRedisAddr = "127.0.0.1:6379"

func main() {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	app := &cli.App{
		Name:  "translationworker",
		Usage: "pops distributed batch-translation jobs and executes them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis-addr", Value: getRedisAddr(), EnvVars: []string{"WORKER_REDIS_ADDR"}},
		},
		Action: func(c *cli.Context) error {
			runWorker(c.String("redis-addr"), logger)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatalw("worker exited with error", "error", err)
	}
}

func runWorker(redisAddr string, logger *zap.SugaredLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	q := queue.NewFromAddr(redisAddr)
	defer func() {
		if err := q.Close(); err != nil {
			logger.Errorw("failed to close redis queue client", "error", err)
		}
	}()

	translator := translation.NewStubTranslator(nil)

	worker := &batchTranslationWorker{
		queue:      q,
		translator: translator,
		logger:     logger,
	}

	logger.Infow("worker starting")

	go worker.Run(ctx)

	<-signals
	logger.Infow("worker shutdown signal received")
	cancel()
	time.Sleep(500 * time.Millisecond)
	logger.Infow("worker stopped")
}

func getRedisAddr() string {
	if addr := os.Getenv("WORKER_REDIS_ADDR"); addr != "" {
		return addr
	}
	return defaultRedisAddr
}

// jobSource is the subset of *queue.Queue a worker needs to pop jobs and
// publish results; narrowed for test substitution.
type jobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	PublishResult(ctx context.Context, result queue.Result, replyKey string) error
}

// batchTranslationWorker pops batch-translation jobs enqueued by
// RemoteTranslator (packages/backend/queue) and executes them against a
// real translation.Translator, publishing the result back to the job's
// reply key.
type batchTranslationWorker struct {
	queue      jobSource
	translator translation.Translator
	logger     *zap.SugaredLogger
}

func (w *batchTranslationWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Pop(ctx, queue.DefaultPopTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			w.logger.Errorw("failed to pop batch job", "error", err)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *batchTranslationWorker) process(ctx context.Context, job *queue.Job) {
	w.logger.Infow("processing batch job", "jobID", job.ID, "sessionID", job.SessionID, "size", len(job.Texts))

	result := queue.Result{JobID: job.ID}

	translations, err := w.translator.TranslateBatch(ctx, job.Texts, job.SourceLang, job.TargetLang)
	if err != nil {
		w.logger.Warnw("batch translation failed", "jobID", job.ID, "error", err)
		result.Error = err.Error()
	} else {
		result.Translations = translations
	}

	if err := w.queue.PublishResult(ctx, result, job.ReplyKey); err != nil {
		w.logger.Errorw("failed to publish batch result", "jobID", job.ID, "error", err)
	}
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.Sugar()
}
