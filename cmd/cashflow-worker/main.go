package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/security"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting cashflow-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// Security events are always logged; the broker copy is best effort
	alerters := security.Alerters{security.NewLogAlerter(logger)}
	var securityClient *amqp.Client
	if cfg.AMQPSecurityQueue != "" {
		var err error
		securityClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSecurityQueue)
		if err != nil {
			logger.Warn("Failed to initialize security event publisher, events will only be logged", log.FieldError, err)
			securityClient = nil
		} else {
			alerters = append(alerters, securityClient)
		}
	}

	// Key reconciliation happens here, before any request is consumed
	initCtx, initCancel := context.WithTimeout(context.Background(), time.Minute)
	app, err := cli.NewApp(initCtx, cfg, logger, alerters)
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize", log.FieldError, err, log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}
	app.Caches.StartCleanup(10 * time.Minute)

	calcClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}

	pool := worker.NewPool(cfg.WorkerPoolSize)
	calcWorker := worker.NewCalculationWorker(app.Reports, logger)

	// The consumer must stop submitting before the pool is waited on
	consumeErr := make(chan error, 1)
	consumerDone := make(chan struct{})

	cleanup := func() {
		<-consumerDone
		logger.Info("Waiting for running calculations", "running", pool.Running())
		pool.Wait()
		if err := calcClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		if securityClient != nil {
			securityClient.Close()
		}
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close storage", log.FieldError, err)
		}
	}
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, cleanup)

	go func() {
		defer close(consumerDone)
		consumeErr <- calcClient.ConsumeCalculations(ctx, pool.Size(), pool, calcWorker.HandleCalculation)
	}()

	logger.Info("Worker ready",
		"queue", cfg.AMQPQueue,
		"pool_size", pool.Size(),
		"security_queue", cfg.AMQPSecurityQueue)

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
			cleanup()
			os.Exit(1)
		}
		cli.WaitForShutdown(ctx, done)
	case <-ctx.Done():
		<-done
	}
}
