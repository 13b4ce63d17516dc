package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/awnumar/memguard"

	"github.com/yeti47/cryochat/chatd/sessions"
	"github.com/yeti47/cryochat/chatd/web"
	"github.com/yeti47/cryochat/chatd/web/handlers"
	"github.com/yeti47/cryochat/chatd/web/middleware"
	"github.com/yeti47/cryochat/core/audit"
	"github.com/yeti47/cryochat/core/ccc/auth"
	"github.com/yeti47/cryochat/core/ccc/db"
	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/chat"
	"github.com/yeti47/cryochat/core/config"
	"github.com/yeti47/cryochat/core/encryption"
	"github.com/yeti47/cryochat/core/messages"
	"github.com/yeti47/cryochat/core/notifications"
	"github.com/yeti47/cryochat/core/relay"
	"github.com/yeti47/cryochat/core/users"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// try to save the config in case it was not found
	if err := cfg.SaveConfig(""); err != nil {
		log.Printf("Failed to save configuration: %v", err)
	}

	logger := logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogPath, "chatd")

	err = run(cfg, logger)
	// wipe the session password enclave
	memguard.Purge()
	if err != nil {
		logger.Error("chatd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	dbConn, err := db.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dbConn.Close()

	// Set up repositories
	userRepo, err := users.NewSQLiteUserRepository(dbConn)
	if err != nil {
		return fmt.Errorf("failed to create user repository: %w", err)
	}
	messageRepo, err := messages.NewSQLiteMessageRepository(dbConn)
	if err != nil {
		return fmt.Errorf("failed to create message repository: %w", err)
	}
	auditLog, err := audit.NewSQLiteAuditLog(dbConn, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	// Set up key management
	limiter := auth.NewMemoryRateLimiter(auth.RateLimitSettings{
		MaxAttempts:     cfg.Security.MaxLoginAttempts,
		LockoutDuration: cfg.Security.LockoutDuration(),
	}, nil)

	vault := encryption.NewKeyVault(encryption.KeyVaultOptions{
		Logger:          logger,
		Store:           users.NewOwnerPolicyStore(userRepo),
		Deriver:         encryption.NewPBKDF2Deriver(cfg.Security.KeyDerivationIterations),
		RateLimiter:     limiter,
		Auditor:         auditLog,
		LockoutNotifier: newLockoutNotifier(cfg, userRepo, logger),
	})
	cipher := encryption.NewMessageCipher(vault, encryption.NewPublicKeyCache(cfg.Security.PublicKeyCacheSize, logger), logger)

	eventRelay, err := newRelay(cfg, logger)
	if err != nil {
		return err
	}
	defer eventRelay.Close()

	session := chat.NewSession(chat.Options{
		Logger:    logger,
		Users:     userRepo,
		Messages:  messageRepo,
		Relay:     eventRelay,
		Vault:     vault,
		Cipher:    cipher,
		Passwords: auth.NewSessionPasswordStore(nil),
		Auditor:   auditLog,
		Settings:  chat.SettingsFromConfig(cfg.Security),
	})
	defer session.Unload()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go session.RunMaintenance(ctx)

	// Set up session store
	sessionKey, err := sessions.GetOrCreateSessionKey(filepath.Dir(cfg.DatabasePath))
	if err != nil {
		return fmt.Errorf("failed to get or create session key: %w", err)
	}
	identityStoreFactory := sessions.NewIdentityStoreFactory(sessions.NewCookieStore(sessionKey, false))

	router := initializeGin(cfg)
	web.SetupRoutes(router, web.Handlers{
		Auth:     handlers.NewAuthHandler(logger, session, userRepo, identityStoreFactory),
		Messages: handlers.NewMessageHandler(logger, session),
		Users:    handlers.NewUserHandler(logger, session),
		Session:  middleware.NewSessionMiddleware(logger, session, identityStoreFactory),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.WebAddr, cfg.WebPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// newRelay picks NATS when a URL is configured, otherwise the in-process relay
func newRelay(cfg *config.Config, logger logging.Logger) (relay.Relay, error) {
	if cfg.NATS.URL == "" {
		logger.Info("No NATS URL configured, using the in-process relay")
		return relay.NewMemoryRelay(logger), nil
	}

	natsRelay, err := relay.NewNATSRelay(relay.NATSSettings{
		URL:             cfg.NATS.URL,
		CredentialsFile: cfg.NATS.CredentialsFile,
		SubjectPrefix:   cfg.NATS.SubjectPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	return natsRelay, nil
}

// newLockoutNotifier mails the user on lockout when SMTP is configured.
// Without SMTP the lockout is only logged.
func newLockoutNotifier(cfg *config.Config, userRepo users.UserRepository, logger logging.Logger) encryption.LockoutNotifier {
	var sender notifications.EmailSender = &notifications.LogSender{Logger: logger}
	if cfg.SMTP.Host != "" {
		sender = notifications.NewSmtpSender(cfg.SMTP)
	}

	lookup := func(ctx context.Context, userID string) (string, error) {
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return "", err
		}
		if user == nil {
			return "", users.ErrUserNotFound
		}
		return user.Email, nil
	}

	return notifications.NewEmailLockoutNotifier(notifications.LockoutNotificationSettings{
		MinInterval: time.Duration(cfg.SMTP.MinIntervalMinutes) * time.Minute,
	}, sender, lookup, logger)
}
