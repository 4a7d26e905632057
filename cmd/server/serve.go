package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/academvault/discussions/internal/config"
	"github.com/academvault/discussions/internal/handler"
	"github.com/academvault/discussions/internal/middleware"
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/internal/telemetry"
	"github.com/academvault/discussions/internal/worker"
	"github.com/academvault/discussions/internal/ws"
	"github.com/academvault/discussions/migrations"
	"github.com/academvault/discussions/pkg/auth"
	"github.com/academvault/discussions/pkg/mailer"
	"github.com/academvault/discussions/pkg/notification"
	"github.com/academvault/discussions/pkg/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func runServe(cmd *cobra.Command, args []string) error {
	// ==================== Config & Logger ====================
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting discussions service", zap.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.App, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// ==================== Database (PostgreSQL) ====================
	db, err := config.NewPostgresDB(cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		return err
	}
	logger.Info("connected to postgres")
	if err := migrate(cfg, db, logger); err != nil {
		return err
	}

	// ==================== Redis ====================
	var rdb *redis.Client
	var stateStore repository.StateStore
	if cfg.Redis.Enabled {
		rdb, err = config.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		stateStore = repository.NewRedisStateStore(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		stateStore = repository.NewMemoryStateStore()
		logger.Warn("redis disabled: token revocation is per instance and realtime push is local only")
	}

	// ==================== Layers ====================
	repos := repository.NewRepositories(db)
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	sessions := service.NewSessionService(repos, jwtManager, stateStore)

	// presence is stored and announced to co-members once the services exist
	var memberships *service.MembershipService
	hub := ws.NewHub(rdb, logger.Named("ws"), func(userID uuid.UUID, online bool) {
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sessions.SetPresence(pctx, userID, online); err != nil {
			logger.Warn("failed to update presence", zap.String("user_id", userID.String()), zap.Error(err))
		}
		if err := memberships.AnnouncePresence(pctx, userID, online); err != nil {
			logger.Warn("failed to announce presence", zap.String("user_id", userID.String()), zap.Error(err))
		}
	})

	var attachments service.AttachmentStore
	if cfg.MinIO.Enabled {
		store, err := storage.NewMinIO(ctx, storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			PublicURL: cfg.MinIO.PublicURL,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			URLExpiry: cfg.MinIO.URLExpiry,
		})
		if err != nil {
			logger.Warn("minio not available, attachment paths are not verified", zap.Error(err))
		} else {
			attachments = store
			logger.Info("connected to minio", zap.String("bucket", cfg.MinIO.Bucket))
		}
	}

	discussions := service.NewDiscussionService(repos, hub, logger.Named("discussions"))
	memberships = service.NewMembershipService(repos, hub, logger.Named("memberships"))
	messages := service.NewMessageService(repos, hub, attachments, logger.Named("messages"))
	notifications := service.NewNotificationService(repos)
	go hub.Run(ctx)

	// ==================== Outbox ====================
	dispatcher := worker.NewOutboxDispatcher(repos.Outbox, buildSinks(ctx, cfg, repos, logger), logger.Named("outbox"), worker.OutboxConfig{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Lease:       cfg.Outbox.Lease,
		Backoff:     cfg.Outbox.Backoff,
		Retention:   cfg.Outbox.Retention,
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	// ==================== HTTP ====================
	if err := handler.RegisterValidators(); err != nil {
		return err
	}
	router := handler.SetupRouter(cfg, logger, jwtManager, sessions,
		middleware.NewRateLimiter(cfg.RateLimit.JoinPerMinute, cfg.RateLimit.JoinBurst),
		handler.Handlers{
			Auth:          handler.NewAuthHandler(sessions, logger),
			Discussions:   handler.NewDiscussionHandler(discussions, logger),
			Memberships:   handler.NewMembershipHandler(memberships, logger),
			Messages:      handler.NewMessageHandler(messages, logger),
			Notifications: handler.NewNotificationHandler(notifications, logger),
			WS:            handler.NewWSHandler(hub, messages, memberships, cfg.CORS.Origins, logger),
		})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited gracefully")
	return nil
}

// migrate applies the SQL migrations, falling back to GORM AutoMigrate
func migrate(cfg *config.Config, db *gorm.DB, logger *zap.Logger) error {
	if !cfg.Database.AutoMigrate {
		err := migrations.Run(cfg.Database.URL(), logger)
		if err == nil {
			return nil
		}
		logger.Warn("migration failed, falling back to GORM AutoMigrate", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("database migrated with AutoMigrate")
	return nil
}

// buildSinks returns the in-app sink plus whichever optional channels are configured
func buildSinks(ctx context.Context, cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) []worker.Sink {
	sinks := []worker.Sink{worker.NewInAppSink(repos.Notifications)}

	pusher, err := notification.NewPusher(ctx, cfg.Firebase.CredentialsFile, logger)
	if err != nil {
		logger.Warn("push notifications disabled", zap.Error(err))
	} else if pusher != nil {
		sinks = append(sinks, worker.BestEffort(worker.NewPushSink(pusher, repos.Users, logger), logger))
	}

	smtpCfg := mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		AppURL:   cfg.App.BaseURL,
	}
	if smtpCfg.Enabled() {
		sinks = append(sinks, worker.BestEffort(worker.NewMailSink(mailer.New(smtpCfg, logger), repos.Users), logger))
		logger.Info("invite e-mail enabled", zap.String("smtp", smtpCfg.Host+":"+smtpCfg.Port))
	}
	return sinks
}
