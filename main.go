package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelbot/api"
	"reelbot/config"
	"reelbot/jobs"
	"reelbot/logging"
	"reelbot/reel"
	"reelbot/worker"
)

func main() {
	mode := flag.String("mode", "api", "run mode: api, kafka or batch")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(settings.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mode, settings, logger); err != nil {
		logger.Error("reelbot exited with error", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, settings config.Settings, logger *slog.Logger) error {
	gen, encoder, err := reel.NewDefaultGenerator(ctx, settings, logger)
	if err != nil {
		return err
	}
	logger.Info("reelbot starting", "mode", mode, "encoder", encoder)

	store, closeStore, err := newJobStore(settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	proc := worker.NewProcessor(gen, store, logger, settings.MaxConcurrentReels)
	defer shutdownProcessor(proc, logger)

	switch mode {
	case "batch":
		summary, err := proc.ProcessFromDirectory(ctx, settings.InputDir)
		if err != nil {
			return err
		}
		logger.Info("batch complete", "found", summary.Found, "succeeded", summary.Succeeded, "failed", summary.Failed)
		if summary.Failed > 0 {
			return errors.New("some reels failed")
		}
		return nil

	case "kafka":
		consumer, err := worker.NewKafkaConsumer(worker.KafkaConfig{
			Brokers: settings.KafkaBrokers,
			Topic:   settings.KafkaTopic,
			GroupID: settings.KafkaGroupID,
		}, proc, logger)
		if err != nil {
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		logger.Info("received termination signal")
		return consumer.Close()

	case "api":
		return serveAPI(ctx, settings, logger, gen, proc, store, encoder)

	default:
		return errors.New("unknown mode " + mode + " (want api, kafka or batch)")
	}
}

func serveAPI(ctx context.Context, settings config.Settings, logger *slog.Logger, gen *reel.Generator, proc *worker.Processor, store jobs.Store, encoder string) error {
	if settings.BatchSchedule != "" {
		if _, err := proc.Schedule(ctx, settings.BatchSchedule, settings.InputDir); err != nil {
			return err
		}
	}

	router := api.NewRouter(api.Dependencies{
		Planner:   gen,
		Submitter: proc,
		Jobs:      store,
		Encoder:   encoder,
		Logger:    logger,
	})
	server := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newJobStore(settings config.Settings, logger *slog.Logger) (jobs.Store, func(), error) {
	if settings.RedisAddr == "" {
		logger.Info("using in-memory job store")
		return jobs.NewMemoryStore(), func() {}, nil
	}
	store, err := jobs.NewRedisStore(jobs.RedisConfig{
		Addr:     settings.RedisAddr,
		Password: settings.RedisPassword,
		DB:       settings.RedisDB,
		TTL:      settings.JobTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis job store", "addr", settings.RedisAddr)
	return store, func() { store.Close() }, nil
}

func shutdownProcessor(proc *worker.Processor, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := proc.Shutdown(ctx); err != nil {
		logger.Warn("in-flight reels cancelled at shutdown", "error", err)
	}
}
