package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/starpro23/MjengoLink-Constructors/internal/config"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/account"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/dispute"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/invoice"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/payment"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/project"
	"github.com/starpro23/MjengoLink-Constructors/internal/domain/wallet"
	"github.com/starpro23/MjengoLink-Constructors/internal/middleware"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/database"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/jwt"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/mpesa"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/response"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting MjengoLink payments API")

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// Evidence storage: S3-compatible bucket when configured, local disk
	// otherwise
	storageCfg := storage.Config{
		Provider:      "local",
		LocalBasePath: cfg.StorageLocalDir,
		LocalBaseURL:  "/files",
	}
	if cfg.StorageAccessKeyID != "" {
		storageCfg = storage.Config{
			Provider:    "s3",
			S3Endpoint:  cfg.StorageEndpoint,
			S3Region:    "auto",
			S3Bucket:    cfg.StorageBucketName,
			S3AccessKey: cfg.StorageAccessKeyID,
			S3SecretKey: cfg.StorageAccessKeySecret,
		}
	}
	fileStorage, err := storage.New(storageCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize evidence storage")
	}

	// Gateway: the Daraja client when credentials are configured; the
	// in-memory simulator keeps local development callback-driven without
	// real credentials
	var gateway payment.Gateway
	if cfg.MpesaConsumerKey != "" {
		gateway = mpesa.NewClient(mpesa.Config{
			Environment:       cfg.MpesaEnvironment,
			ConsumerKey:       cfg.MpesaConsumerKey,
			ConsumerSecret:    cfg.MpesaConsumerSecret,
			BusinessShortcode: cfg.MpesaBusinessShortcode,
			Passkey:           cfg.MpesaPasskey,
			CallbackURL:       cfg.MpesaCallbackURL,
			Timeout:           cfg.MpesaTimeout,
		}, redis)
	} else {
		if cfg.IsProduction() {
			log.Fatal().Msg("M-Pesa credentials are required in production")
		}
		log.Warn().Msg("No M-Pesa credentials, using the in-memory gateway simulator")
		gateway = mpesa.NewSimulator()
	}

	// ---------- Repositories and services ----------
	accountRepo := account.NewRepository(db)
	walletSvc := wallet.NewService(wallet.NewRepository(db), cfg.MinWithdrawalAmount, cfg.MaxWithdrawalAmount)
	projectSvc := project.NewService(project.NewRepository(db))

	paymentRepo := payment.NewRepository(db)
	paymentFeed := payment.NewFeed()
	paymentSvc := payment.NewService(paymentRepo, walletSvc, projectSvc, accountRepo, gateway, paymentFeed,
		int64(cfg.ServiceFeeBasisPoints), cfg.MaxPaymentAmount)

	invoiceSvc := invoice.NewService(invoice.NewRepository(db), projectSvc)
	disputeSvc := dispute.NewService(dispute.NewRepository(db), paymentRepo, walletSvc, projectSvc, fileStorage)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletSvc)
	projectHandler := project.NewHandler(projectSvc)
	paymentHandler := payment.NewHandler(paymentSvc, paymentFeed, cfg.MpesaValidationKey)
	invoiceHandler := invoice.NewHandler(invoiceSvc)
	disputeHandler := dispute.NewHandler(disputeSvc)

	authMiddleware := middleware.Auth(jwtService)
	homeownerOnly := middleware.RequireHomeowner()
	artisanOnly := middleware.RequireArtisan()
	adminOnly := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Gateway callbacks are authenticated by signature, not by JWT
	r.Post("/webhooks/mpesa/callback", paymentHandler.Webhook)

	r.With(authMiddleware).Get("/ws/payments", paymentFeed.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(authMiddleware, adminOnly))
		r.Mount("/projects", projectHandler.Routes(authMiddleware, homeownerOnly, artisanOnly))
		r.Mount("/bids", projectHandler.BidRoutes(authMiddleware, homeownerOnly, artisanOnly))
		r.Mount("/milestones", projectHandler.MilestoneRoutes(authMiddleware, homeownerOnly, artisanOnly))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
		r.Mount("/invoices", invoiceHandler.Routes(authMiddleware, artisanOnly))
		r.Mount("/disputes", disputeHandler.Routes(authMiddleware, adminOnly))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
