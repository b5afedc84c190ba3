package main

import (
	"context"
	"crypto/tls"
	"database/sql"
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
	"github.com/redis/go-redis/v9"

	"github.com/flowline-ai/flowline/cmd/mainconfig"
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

const availabilityRollInterval = 6 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting flowline conversation worker", "env", cfg.Env)

	ctx := context.Background()

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
	bookingSvc := booking.NewService(bookingStore, catalogStore, logger,
		booking.WithRefresher(availSvc),
		booking.WithOutbox(outboxStore))

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	sessions := session.NewRedisStore(redis.NewClient(redisOpts), session.WithTTL(cfg.SessionTTL))
	archiver := session.NewArchiver(sqlDB, logger)

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to initialize gemini client", "error", err)
		os.Exit(1)
	}
	oracle := llm.NewOracle(gemini, logger)

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

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := worker.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.FlowQueueURL)
	jobStore := worker.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.FlowJobsTable, logger)

	client := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID)
	if cfg.WhatsAppAPIBaseURL != "" {
		client.SetGraphAPIBase(cfg.WhatsAppAPIBaseURL)
	}
	sender := whatsapp.NewSender(client, logger).WithObserver(metrics.NewWebhookMetrics(nil))

	w := worker.NewWorker(processor, queue, jobStore, sender, logger,
		worker.WithWorkerCount(cfg.WorkerCount),
		worker.WithProcessedEventsStore(processedStore),
		worker.WithOutbox(outboxStore),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(runCtx)

	deliverer := events.NewDeliverer(outboxStore, notify.NewOutboxHandler(notifySvc, logger), logger)
	go deliverer.Start(runCtx)

	go rollAvailability(runCtx, availSvc, cfg.DefaultBusinessID, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		w.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}

// rollAvailability keeps the precomputed booking window fresh: one full roll
// at startup, then periodic refreshes so the horizon advances with the clock.
func rollAvailability(ctx context.Context, svc *availability.Service, businessID string, logger *logging.Logger) {
	roll := func() {
		rollCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := svc.RollWindow(rollCtx, businessID); err != nil {
			logger.Error("availability window roll failed", "business_id", businessID, "error", err)
		}
	}
	roll()

	ticker := time.NewTicker(availabilityRollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			roll()
		}
	}
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
