package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flowline-ai/flowline/cmd/mainconfig"
	"github.com/flowline-ai/flowline/internal/api/handlers"
	"github.com/flowline-ai/flowline/internal/api/router"
	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/internal/booking"
	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/channels/whatsapp"
	appconfig "github.com/flowline-ai/flowline/internal/config"
	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/internal/llm"
	"github.com/flowline-ai/flowline/internal/notify"
	"github.com/flowline-ai/flowline/internal/observability/metrics"
	"github.com/flowline-ai/flowline/internal/payments"
	"github.com/flowline-ai/flowline/internal/session"
	"github.com/flowline-ai/flowline/internal/steps"
	"github.com/flowline-ai/flowline/internal/worker"
	"github.com/flowline-ai/flowline/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting flowline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres: pgx pool for the hot-path stores, database/sql for the
	// catalog and transcript archive.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql connection", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	catalogStore := catalog.NewStore(sqlDB, logger)
	availStore := availability.NewStore(pool)
	bookingStore := booking.NewStore(pool)
	outboxStore := events.NewOutboxStore(pool)
	processedStore := events.NewProcessedStore(pool)

	availSvc := availability.NewService(availStore, catalogStore, bookingStore, logger,
		availability.WithWindowDays(cfg.AvailabilityWindowDays))

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := worker.NewJobStore(dynamoClient, cfg.FlowJobsTable, logger)

	var (
		publisher *worker.Publisher
		memQueue  *worker.MemoryQueue
	)
	if cfg.UseMemoryQueue {
		memQueue = worker.NewMemoryQueue(64)
		publisher = worker.NewPublisher(memQueue, logger)
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		publisher = worker.NewPublisher(worker.NewSQSQueue(sqsClient, cfg.FlowQueueURL), logger)
	}
	ingress := worker.NewIngress(jobStore, publisher, logger)

	webhookMetrics := metrics.NewWebhookMetrics(nil)
	whatsappWebhook := whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret,
		func(msg whatsapp.ParsedInboundMessage) {
			messageType := "text"
			if msg.Payload != "" {
				messageType = "interactive"
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err := ingress.Accept(ctx, worker.InboundJob{
				BusinessID:        cfg.DefaultBusinessID,
				ParticipantID:     msg.SenderID,
				ParticipantName:   msg.SenderName,
				Language:          cfg.DefaultLanguage,
				PhoneNumberID:     msg.PhoneNumberID,
				Text:              msg.Text,
				Payload:           msg.Payload,
				ProviderMessageID: msg.MessageID,
			})
			if err != nil {
				webhookMetrics.ObserveInbound(messageType, "error")
				logger.Error("failed to accept inbound message", "participant_id", msg.SenderID, "error", err)
				return
			}
			webhookMetrics.ObserveInbound(messageType, "accepted")
		})

	squareWebhook := payments.NewSquareWebhookHandler(cfg.PaymentWebhookKey,
		bookingStore, catalogStore, processedStore, outboxStore, publisher, logger)

	var fakePayments *payments.FakePaymentsHandler
	if cfg.AllowFakePayments {
		fakePayments = payments.NewFakePaymentsHandler(
			bookingStore, catalogStore, processedStore, outboxStore, publisher, logger)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		WhatsAppWebhook:    whatsappWebhook,
		SquareWebhook:      squareWebhook,
		FakePayments:       fakePayments,
		Jobs:               handlers.NewJobsHandler(jobStore, logger),
		Availability:       handlers.NewAvailabilityHandler(availSvc, logger),
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: splitCSV(cfg.CORSAllowedOrigins),
	}
	r := router.New(routerCfg)

	// With the in-memory queue the conversation worker runs inside this
	// process; with SQS it is the flow-worker binary's job.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var inProc *worker.Worker
	if cfg.UseMemoryQueue {
		inProc = startInProcessWorker(ctx, workerCtx, cfg, logger,
			sqlDB, catalogStore, bookingStore, availSvc, outboxStore, processedStore,
			memQueue, jobStore, webhookMetrics)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	workerCancel()
	if inProc != nil {
		inProc.Wait()
	}

	logger.Info("server stopped")
}

// startInProcessWorker wires the full conversation stack for single-process
// deployments and starts consuming from the in-memory queue.
func startInProcessWorker(
	ctx, workerCtx context.Context,
	cfg *appconfig.Config,
	logger *logging.Logger,
	sqlDB *sql.DB,
	catalogStore *catalog.Store,
	bookingStore *booking.Store,
	availSvc *availability.Service,
	outboxStore *events.OutboxStore,
	processedStore *events.ProcessedStore,
	queue *worker.MemoryQueue,
	jobStore *worker.JobStore,
	webhookMetrics *metrics.WebhookMetrics,
) *worker.Worker {
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	sessions := session.NewRedisStore(redisClient, session.WithTTL(cfg.SessionTTL))
	archiver := session.NewArchiver(sqlDB, logger)

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to initialize gemini client", "error", err)
		os.Exit(1)
	}
	oracle := llm.NewOracle(gemini, logger)

	bookingSvc := booking.NewService(bookingStore, catalogStore, logger,
		booking.WithRefresher(availSvc),
		booking.WithOutbox(outboxStore))

	var checkout payments.CheckoutService
	if cfg.AllowFakePayments {
		checkout = payments.NewFakeCheckoutService(cfg.PublicBaseURL, logger)
	} else {
		checkout = payments.NewSquareCheckoutService(
			cfg.SquareAccessToken, cfg.SquareLocationID, cfg.PaymentSuccessURL, logger)
	}
	linker := payments.NewLinker(checkout, bookingStore, logger)

	var email notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		email = sg
	} else {
		email = notify.NewStubEmailSender(logger)
	}
	notifySvc := notify.NewService(email, notify.Config{
		Recipients: splitCSV(cfg.EscalationEmail),
	}, logger)

	registry := steps.NewRegistry(steps.Deps{
		Availability: availSvc,
		Users:        catalogStore,
		Quotes:       bookingSvc,
		Bookings:     bookingSvc,
		Payments:     linker,
		FAQ:          oracle,
		Escalations:  notifySvc,
		DepositCents: cfg.DepositAmountCents,
		Logger:       logger,
	})
	goals := flow.NewGoalManager(catalog.NewFlowCatalog(catalogStore), logger)
	processor := flow.NewProcessor(sessions, registry, goals, logger,
		flow.WithOracle(oracle),
		flow.WithQuoteRestorer(bookingSvc),
		flow.WithObserver(metrics.NewFlowMetrics(nil)),
		flow.WithGoalArchiver(archiver),
		flow.WithAutoAdvanceLimit(cfg.AutoAdvanceLimit),
		flow.WithDefaultLanguage(cfg.DefaultLanguage),
	)

	client := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID)
	if cfg.WhatsAppAPIBaseURL != "" {
		client.SetGraphAPIBase(cfg.WhatsAppAPIBaseURL)
	}
	sender := whatsapp.NewSender(client, logger).WithObserver(webhookMetrics)

	w := worker.NewWorker(processor, queue, jobStore, sender, logger,
		worker.WithWorkerCount(cfg.WorkerCount),
		worker.WithProcessedEventsStore(processedStore),
		worker.WithOutbox(outboxStore),
	)
	w.Start(workerCtx)

	deliverer := events.NewDeliverer(outboxStore, notify.NewOutboxHandler(notifySvc, logger), logger)
	go deliverer.Start(workerCtx)

	logger.Info("in-process conversation worker started", "workers", cfg.WorkerCount)
	return w
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
