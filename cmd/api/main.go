package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/service-desk-engine/internal/adapters/primary/chat"
	httpAdapter "github.com/lorrc/service-desk-engine/internal/adapters/primary/http"
	mw "github.com/lorrc/service-desk-engine/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-engine/internal/adapters/primary/mailbox"
	"github.com/lorrc/service-desk-engine/internal/adapters/primary/scheduler"
	"github.com/lorrc/service-desk-engine/internal/adapters/primary/websocket"
	"github.com/lorrc/service-desk-engine/internal/adapters/secondary/blob"
	"github.com/lorrc/service-desk-engine/internal/adapters/secondary/email"
	"github.com/lorrc/service-desk-engine/internal/adapters/secondary/postgres"
	"github.com/lorrc/service-desk-engine/internal/adapters/secondary/redis"
	"github.com/lorrc/service-desk-engine/internal/adapters/secondary/slack"
	"github.com/lorrc/service-desk-engine/internal/auth"
	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/services"
	"github.com/lorrc/service-desk-engine/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		AddSource:   cfg.IsDevelopment(),
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Cancelled on SIGINT/SIGTERM; every background loop hangs off it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Database Pool and Schema
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connection established")

	if err := postgres.RunMigrations(cfg.Database.URL, logger); err != nil {
		return err
	}

	// 4. Repositories and Stores
	userRepo := postgres.NewUserRepository(pool)
	ticketRepo := postgres.NewTicketRepository(pool, cfg.Tickets.OptimisticLocking)
	policyRepo := postgres.NewSLAPolicyRepository(pool)
	commentRepo := postgres.NewCommentRepository(pool)
	attachmentRepo := postgres.NewAttachmentRepository(pool)
	mappingRepo := postgres.NewIdentityMappingRepository(pool)

	healthChecks := map[string]httpAdapter.HealthChecker{"database": pool}

	var processedEvents ports.ProcessedEventStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(ctx, cfg.Redis, logger)
		defer redisClient.Close()
		processedEvents = redis.NewProcessedEventStore(redisClient, cfg.Redis.DedupeTTL)
		healthChecks["redis"] = httpAdapter.HealthCheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		processedEvents = postgres.NewProcessedEventStore(pool)
	}

	var blobs ports.BlobStore
	if cfg.Storage.MinioEndpoint != "" {
		blobs, err = blob.NewMinioStore(ctx, cfg.Storage, logger)
	} else {
		blobs, err = blob.NewLocalStore(cfg.Storage.UploadDir)
	}
	if err != nil {
		return err
	}

	// 5. Outbound Channels
	var (
		chatNotifier ports.Notifier
		mailNotifier ports.Notifier
		directory    ports.ActorDirectoryLookup
		fetcher      ports.FileFetcher
		listener     *chat.Listener
	)

	slackClient := slack.NewClient(cfg.Slack)
	if cfg.Slack.Enabled {
		chatNotifier = slack.NewNotifier(slackClient, cfg.Slack.ChannelID, logger)
		directory = slack.NewDirectory(slackClient)
		fetcher = slack.NewFetcher(slackClient)
	}

	if cfg.SMTP.Host != "" {
		mailNotifier, err = email.NewSMTPNotifier(cfg.SMTP, logger)
		if err != nil {
			return err
		}
	}

	// 6. Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	authzService := services.NewAuthorizationService(userRepo)

	hub := websocket.NewHub(func(ctx context.Context, userID uuid.UUID, _ int64) bool {
		ok, err := authzService.Can(ctx, userID, services.PermTicketsWatch)
		return err == nil && ok
	}, logger)
	go hub.Run(ctx)

	// 7. Core Services
	correlator := services.NewCorrelator(ticketRepo, processedEvents, logger)

	notificationService := services.NewNotificationService(services.NotificationDeps{
		Chat:        chatNotifier,
		Mail:        mailNotifier,
		Broadcaster: hub,
		Users:       userRepo,
		Correlator:  correlator,
		Logger:      logger,
	})
	defer notificationService.Shutdown()

	slaService := services.NewSLAService(services.SLADeps{
		Tickets:        ticketRepo,
		Policies:       policyRepo,
		Users:          userRepo,
		Notifications:  notificationService,
		UpdateAttempts: cfg.Tickets.UpdateRetries,
		Logger:         logger,
	})

	attachmentService := services.NewAttachmentService(services.AttachmentDeps{
		Blobs:         blobs,
		Attachments:   attachmentRepo,
		Notifications: notificationService,
		MaxSize:       cfg.Slack.MaxFileSize,
		Logger:        logger,
	})

	ticketService := services.NewTicketService(services.TicketDeps{
		Tickets:        ticketRepo,
		Users:          userRepo,
		Authz:          authzService,
		SLA:            slaService,
		Attachments:    attachmentService,
		Notifications:  notificationService,
		UpdateAttempts: cfg.Tickets.UpdateRetries,
		ArchiveAfter:   cfg.Tickets.ArchiveAfter,
		Logger:         logger,
	})

	commentService := services.NewCommentService(services.CommentDeps{
		Comments:      commentRepo,
		Tickets:       ticketRepo,
		SLA:           slaService,
		Notifications: notificationService,
		Logger:        logger,
	})

	assignmentService := services.NewBalancer(services.BalancerDeps{
		Tickets:   ticketRepo,
		Users:     userRepo,
		TicketSvc: ticketService,
		Batch:     cfg.Assignment.AutoAssignBatch,
		Slack:     cfg.Assignment.RebalanceSlack,
		Logger:    logger,
	})

	authService := services.NewAuthService(userRepo)

	if cfg.Bootstrap.AdminEmail != "" {
		if _, err := services.BootstrapAdmin(ctx, userRepo, services.BootstrapAdminParams{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
			FullName: cfg.Bootstrap.AdminName,
		}, logger); err != nil {
			return err
		}
	}

	// 8. Inbound Channels
	if cfg.Slack.Enabled {
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{
			Mappings: mappingRepo,
			Users:    userRepo,
			Matcher:  services.NewNameMatcher(userRepo),
			Logger:   logger,
		})
		chatIngest := services.NewChatIngestService(services.ChatIngestDeps{
			Correlator:    correlator,
			Resolver:      resolver,
			Lookup:        directory,
			Tickets:       ticketService,
			Comments:      commentService,
			Attachments:   attachmentService,
			Fetcher:       fetcher,
			Notifications: notificationService,
			MaxFileSize:   cfg.Slack.MaxFileSize,
			Logger:        logger,
		})
		listener = chat.NewListener(slackClient, cfg.Slack.ChannelID, chatIngest, logger)
	}

	intervals := scheduler.Intervals{
		Breaches:    cfg.SLA.BreachInterval,
		Escalations: cfg.SLA.EscalationInterval,
		Archive:     cfg.Tickets.ArchiveInterval,
	}
	if cfg.Assignment.AutoAssignEnabled {
		intervals.AutoAssign = cfg.Assignment.AutoAssignInterval
	}

	jobServices := scheduler.Services{
		SLA:        slaService,
		Assignment: assignmentService,
		Tickets:    ticketService,
	}
	if cfg.IMAP.Enabled {
		emailIngest := services.NewEmailIngestService(services.EmailIngestDeps{
			Correlator:        correlator,
			Users:             userRepo,
			Tickets:           ticketService,
			Comments:          commentService,
			Attachments:       attachmentService,
			Notifications:     notificationService,
			ConfirmationDelay: cfg.SMTP.ConfirmationDelay,
			Logger:            logger,
		})
		poller := mailbox.NewPoller(cfg.IMAP, emailIngest, logger)
		jobServices.Mailbox = scheduler.PollerFunc(func(ctx context.Context) error {
			_, err := poller.Poll(ctx)
			return err
		})
		intervals.MailPoll = poller.Interval()
	}

	jobs := scheduler.New(logger)
	jobs.Register(jobServices, intervals)
	jobs.Start(ctx)

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if listener == nil {
			return
		}
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("chat listener stopped", "error", err)
		}
	}()

	// 9. HTTP Surface
	errorHandler := httpAdapter.NewErrorHandler(logger)

	var apiLimiter, authLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		apiLimiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		authLimiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Auth: httpAdapter.NewAuthHandler(authService, tokenManager, errorHandler, logger),
		Admin: httpAdapter.NewAdminHandler(httpAdapter.AdminDeps{
			Assignment:    assignmentService,
			SLA:           slaService,
			Tickets:       ticketService,
			DefaultPolicy: ports.AssignmentPolicy(cfg.Assignment.Policy),
			ErrorHandler:  errorHandler,
			Logger:        logger,
		}),
		Health:         httpAdapter.NewHealthHandler(healthChecks, cfg.App.Version),
		WebSocket:      httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg.WebSocket, cfg.IsDevelopment(), logger),
		TokenManager:   tokenManager,
		Authz:          authzService,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		RateLimiter:    apiLimiter,
		AuthLimiter:    authLimiter,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 10. Wait for Shutdown
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server failed", "error", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	jobs.Wait()
	<-listenerDone

	return runErr
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
