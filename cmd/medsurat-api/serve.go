package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/handler"
	"github.com/noah-isme/medsurat-api/internal/repository"
	"github.com/noah-isme/medsurat-api/internal/service"
	"github.com/noah-isme/medsurat-api/pkg/ai"
	"github.com/noah-isme/medsurat-api/pkg/cache"
	"github.com/noah-isme/medsurat-api/pkg/config"
	"github.com/noah-isme/medsurat-api/pkg/database"
	"github.com/noah-isme/medsurat-api/pkg/document"
	"github.com/noah-isme/medsurat-api/pkg/export"
	"github.com/noah-isme/medsurat-api/pkg/mailer"
	"github.com/noah-isme/medsurat-api/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg, logr, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger, migrate bool) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if migrate {
		if _, err := database.Migrate(ctx, db, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, verification cache disabled and sessions revoked in process", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	router, err := buildRouter(cfg, logr, db, redisClient)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logr.Info("server exited")
	return nil
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (http.Handler, error) {
	loc, err := time.LoadLocation(cfg.Certificates.Timezone)
	if err != nil {
		logr.Warn("unknown certificate timezone, using UTC", zap.String("timezone", cfg.Certificates.Timezone), zap.Error(err))
		loc = time.UTC
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, "medsurat:")

	verifyCache := service.NewVerificationCache(cacheRepo, metrics, cfg.Cache.VerificationTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	records := service.NewRecordStore(requestRepo, auditRepo, metrics, validate, logr)
	authSvc := service.NewAuthService(sessionRepo, auditRepo, validate, logr, service.AuthConfig{
		Secret:       cfg.JWT.Secret,
		Expiry:       cfg.JWT.Expiration,
		Issuer:       cfg.JWT.Issuer,
		OfficerEmail: cfg.Officer.Email,
		OfficerName:  cfg.Officer.Name,
		PasswordHash: cfg.Officer.PasswordHash,
	})
	minter := service.NewCertificateMinter(records, service.MinterConfig{
		Prefix:              cfg.Certificates.Prefix,
		Strategy:            cfg.Certificates.Strategy,
		MaxAttempts:         cfg.Certificates.MaxMintAttempts,
		Location:            loc,
		DefaultValidityDays: cfg.Certificates.DefaultValidityDays,
		MaxValidityDays:     cfg.Certificates.MaxValidityDays,
	}, metrics, logr)

	store, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	renderer := document.NewCertificateRenderer(document.Provider{
		Name:       cfg.Provider.Name,
		Address:    cfg.Provider.Address,
		Contact:    cfg.Provider.Contact,
		City:       cfg.Provider.City,
		SignerName: cfg.Provider.SignerName,
	}, cfg.Certificates.VerifyBaseURL, loc, logr)

	documents := service.NewDocumentService(records, renderer, store, signer, service.DocumentConfig{
		DownloadBaseURL: cfg.Storage.DownloadBaseURL,
		RenderTimeout:   cfg.Timeouts.Render,
		UploadTimeout:   cfg.Timeouts.Upload,
	}, logr)

	deps := service.ApprovalDeps{
		Gate:      authSvc,
		Records:   records,
		Minter:    minter,
		Renderer:  renderer,
		Storage:   store,
		Links:     documents,
		Audit:     auditRepo,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	}
	if cfg.Mail.SendGridAPIKey != "" {
		deps.Notifier = mailer.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.SendGridHost, cfg.Mail.FromAddress, cfg.Mail.FromName)
	} else {
		logr.Warn("SENDGRID_API_KEY not set, approval emails are logged only")
		deps.Notifier = mailer.NewLogMailer(logr, cfg.Mail.FromName)
	}
	if cfg.AI.Enabled {
		deps.Drafter = ai.NewClient(ai.Options{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
	}
	approvals := service.NewApprovalService(deps, service.ApprovalConfig{
		RenderTimeout: cfg.Timeouts.Render,
		UploadTimeout: cfg.Timeouts.Upload,
		NotifyTimeout: cfg.Timeouts.Notify,
		DraftTimeout:  cfg.AI.Timeout,
	})
	verification := service.NewVerificationService(records, verifyCache, documents, metrics, logr)
	exports := service.NewExportService(records, export.NewCSVExporter(), export.NewPDFExporter(), loc, logr)

	checks := map[string]handler.Pinger{"postgres": requestRepo}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	return handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, handler.Handlers{
		Requests:     handler.NewRequestHandler(records),
		Approvals:    handler.NewApprovalHandler(approvals),
		Verification: handler.NewVerificationHandler(verification),
		Documents:    handler.NewDocumentHandler(documents, exports),
		Auth:         handler.NewAuthHandler(authSvc),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
	}, authSvc, metrics, logr), nil
}
