package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	api "email-agent-backend/cmd/api"
	authdomain "email-agent-backend/internal/auth/domain"
	authRepo "email-agent-backend/internal/auth/repository"
	authUsecase "email-agent-backend/internal/auth/usecase"
	emaildomain "email-agent-backend/internal/email/domain"
	emailRepo "email-agent-backend/internal/email/repository"
	"email-agent-backend/internal/email/scheduler"
	emailUsecase "email-agent-backend/internal/email/usecase"
	"email-agent-backend/internal/notification"
	"email-agent-backend/pkg/config"
	"email-agent-backend/pkg/database"
	"email-agent-backend/pkg/fcm"
	"email-agent-backend/pkg/gmail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}, &emaildomain.GmailConnection{}, &emaildomain.EmailDigest{}, &emaildomain.EmailSummary{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	if cfg.TokenEncryptionKey == "" {
		log.Printf("[WARN] TOKEN_ENCRYPTION_KEY not set, Gmail tokens are stored unencrypted")
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	connRepo := emailRepo.NewGmailConnectionRepository(db, cfg.TokenEncryptionKey)
	digestRepo := emailRepo.NewEmailDigestRepository(db)

	// Gmail is stateless; credentials are passed on every call
	gmailService := gmail.NewService()
	gmailOAuth := gmail.NewOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	analyzer := emailUsecase.NewEmailAnalysisService(api.NewAIGenerator(ctx, cfg))

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg)
	connectionUsecase := emailUsecase.NewConnectionUsecase(connRepo, gmailService, gmailOAuth)
	digestUsecase := emailUsecase.NewDigestUsecase(digestRepo, connectionUsecase, gmailService, analyzer, emailUsecase.DigestConfig{
		Lookback:            cfg.DigestLookback,
		ClassifyConcurrency: cfg.DigestClassifyConcurrency,
	})

	// FCM is optional; without it scheduled digests simply do not push
	var notifier scheduler.Notifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			notifier = notification.NewService(fcmTokenRepo, fcmClient, cfg.FrontendURL)
		}
	} else {
		log.Printf("[FCM] No Firebase credentials configured, FCM disabled")
	}

	digestScheduler, err := scheduler.NewDigestScheduler(connRepo, digestUsecase, notifier, cfg.DigestSchedule)
	if err != nil {
		log.Fatal("Invalid DIGEST_SCHEDULE:", err)
	}
	digestScheduler.Start(ctx)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, connectionUsecase, digestUsecase, gmailOAuth, cfg)
	server := handler.Server(":" + cfg.Port)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Server shutdown failed: %v", err)
	}
	digestScheduler.Stop()
	log.Println("Server stopped")
}
