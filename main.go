package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	"checkout-service/internal/db"
	"checkout-service/internal/gateway"
	"checkout-service/internal/kafka"
	"checkout-service/internal/logging"
	"checkout-service/internal/message"
	"checkout-service/internal/metrics"
	"checkout-service/internal/order"
	"checkout-service/internal/server"
	"checkout-service/internal/webhook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	cfg := config.MustLoadConfig(configPath)

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connStr := db.GetConnStr(cfg.Database)
	if err := db.RunMigrations(connStr, cfg.Migrations.Dir); err != nil {
		log.Fatal(err)
	}

	dbpool, err := db.GetPool(ctx, connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer dbpool.Close()

	orderRepo := db.NewOrderRepository(dbpool)
	webhookRepo := db.NewWebhookRepository(dbpool)

	dispatcher := webhook.NewDispatcher(
		webhook.NewSender(cfg.Webhook.TimeoutMs, logger),
		cfg.Webhook.Parallelism,
		logger,
		webhook.SourceFunc(webhookRepo.ListActivePrivileged),
		webhook.SourceFunc(webhookRepo.ListActive),
	)

	var publishers []webhook.Publisher
	if cfg.Kafka.Enabled() {
		eventWriter := kafka.NewWriter(cfg.Kafka, cfg.Kafka.Topic.OrderEvents)
		defer eventWriter.Close()
		publishers = append(publishers, kafka.NewOrderEventPublisher(eventWriter))
	}

	emitter := webhook.NewEmitter(dispatcher, time.Duration(cfg.Webhook.EmitTimeoutMs)*time.Millisecond, logger,
		publishers...)

	gatewayClient := gateway.NewClient(cfg.Gateway, logger)
	service := order.NewService(orderRepo, gatewayClient, emitter, cfg.Gateway.CallbackURL, logger)

	inProcess := server.NewInProcessQueue(service.ProcessRawCallback, logger)
	var callbacks server.CallbackQueue = inProcess
	if cfg.Kafka.Enabled() {
		callbackWriter := kafka.NewWriter(cfg.Kafka, cfg.Kafka.Topic.GatewayCallbacks)
		defer callbackWriter.Close()

		callbackReader := kafka.NewReader(cfg.Kafka, cfg.Kafka.Topic.GatewayCallbacks)
		defer callbackReader.Close()

		kafka.ReadGatewayCallbacks(ctx, callbackReader, func(ctx context.Context, cb message.GatewayCallback) error {
			return service.ProcessRawCallback(ctx, cb.ContentType, cb.Body)
		}, logger)

		callbacks = server.ChainQueues(kafka.NewCallbackQueue(callbackWriter), inProcess)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.New(service, callbacks, dbpool, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		inProcess.Wait()
		emitter.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached with callbacks or webhooks still in flight")
	}
}
