package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"costboard/internal/amqp"
	"costboard/internal/ancillary"
	"costboard/internal/backend"
	"costboard/internal/cli"
	"costboard/internal/engine"
	apphttp "costboard/internal/http"
	"costboard/internal/loader"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/services"
	"costboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	prof := profile.Default()
	if cfg.ProfileFile != "" {
		var err error
		prof, err = profile.Load(cfg.ProfileFile)
		if err != nil {
			logger.Error("Failed to load brand profile", log.FieldError, err, "path", cfg.ProfileFile)
			os.Exit(1)
		}
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err,
			"source", backendCfg.Source, "cache", backendCfg.Cache)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	ld := loader.New(res.Source, res.Cache, loader.Options{
		Timeout:     cfg.FetchTimeout,
		Concurrency: cfg.FetchConcurrency,
	}, logger)
	engineCfg := engine.DefaultConfig()
	engineCfg.ReferenceMonth = cfg.Reference()
	dashboard := services.NewDashboardService(prof, ld, ancillary.New(res.Source, logger), engineCfg, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard:      dashboard,
		Insights:       repo,
		Events:         repo,
		Ready:          repo,
		Logger:         logger,
		WriteLimit:     60,
		TrustedProxies: cfg.TrustedProxies,
	})

	// The snapshot refresh consumer is optional.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without cache invalidation",
				log.FieldError, err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	workerDone := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			<-workerDone
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Repository close error", log.FieldError, err)
		}
	})

	if amqpClient != nil {
		w := worker.NewInvalidationWorker(dashboard, repo, logger)
		go func() {
			defer close(workerDone)
			if err := w.Run(ctx, amqpClient); err != nil {
				logger.Error("Invalidation worker stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting costboard server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"brands", len(prof.Brands),
		"source", backendCfg.Source,
		"cache", backendCfg.Cache,
		"reference_month", cfg.Reference().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
