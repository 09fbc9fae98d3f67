package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pquerna/otp"

	httpapi "github.com/aussiebroadwan/otpauth/internal/auth/http"
	"github.com/aussiebroadwan/otpauth/internal/auth/notify"
	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/memory"
	otpredis "github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/cryptox"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
	"github.com/aussiebroadwan/otpauth/pkg/mailx"
	"github.com/aussiebroadwan/otpauth/pkg/otpcode"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
	"github.com/aussiebroadwan/otpauth/pkg/validatex"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	productName = "otpauth"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clocker

	// Core dependencies
	db         store.Store
	challenges store.ChallengeBackend
	notifier   notify.Notifier
	keyManager *jwtx.KeyManager
	hasher     *cryptox.PasswordHasher

	// closed after the server has drained, in order
	closers []io.Closer

	// Services
	directory           *service.PasswordDirectory
	authService         *service.AuthService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:   cfg,
		clock: clock.New(),
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewPasswordHasher(pepper)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initChallengeStore(ctx); err != nil {
		_ = app.closeAll()
		return nil, err
	}

	if err := app.initNotifier(); err != nil {
		_ = app.closeAll()
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.closeAll()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initServices(); err != nil {
		_ = app.closeAll()
		return nil, err
	}

	if err := app.bootstrap(ctx); err != nil {
		_ = app.closeAll()
		return nil, err
	}

	if err := app.initHTTP(); err != nil {
		_ = app.closeAll()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"challenge_store", app.cfg.ChallengeStore,
		"notifier", app.cfg.Notifier,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.closeAll()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeAll(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// closeAll releases resources in reverse order of acquisition.
func (app *Application) closeAll() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("error closing resource", "error", err)
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.db = db
	app.closers = append(app.closers, db)

	app.logger.Info("database migrations applied successfully")
	return nil
}

// sqliteChallenges serves challenges from the user database. The database
// owns the connection, so Close is a no-op.
type sqliteChallenges struct {
	store.Challenges
	db store.Store
}

func (s sqliteChallenges) Ping(ctx context.Context) error { return s.db.Ping(ctx) }
func (s sqliteChallenges) Close() error                   { return nil }

func (app *Application) initChallengeStore(ctx context.Context) error {
	switch app.cfg.ChallengeStore {
	case ChallengeStoreMemory:
		app.logger.Warn("challenges are kept in memory and do not survive a restart or span replicas")
		app.challenges = memory.NewStore()

	case ChallengeStoreRedis:
		rs, err := otpredis.Open(ctx, app.cfg.RedisURL, otpredis.Options{})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.challenges = rs
		app.closers = append(app.closers, rs)

	default:
		app.challenges = sqliteChallenges{Challenges: app.db.Challenges(), db: app.db}
	}

	app.logger.Info("challenge store ready", "driver", app.cfg.ChallengeStore)
	return nil
}

func (app *Application) initNotifier() error {
	switch app.cfg.Notifier {
	case NotifierNATS:
		nc, err := nats.Connect(app.cfg.NATSURL,
			nats.Name(productName),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		app.notifier = notify.NewNATS(nc, app.cfg.NATSSubject, app.clock)
		app.closers = append(app.closers, closerFunc(nc.Drain))

	case NotifierLog:
		app.logger.Warn("one-time codes are written to the log, do not use outside development")
		app.notifier = notify.Log{}

	default:
		mail, err := mailx.NewSMTP(mailx.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.SMTPFrom,
		})
		if err != nil {
			return fmt.Errorf("failed to configure smtp: %w", err)
		}
		app.notifier = notify.NewEmail(mail, notify.EmailConfig{
			Product: productName,
			TTL:     app.cfg.OTPTTL,
			Retries: uint64(app.cfg.NotifyRetries),
		})
		app.closers = append(app.closers, mail)
	}

	app.logger.Info("notifier ready", "notifier", app.cfg.Notifier)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// initServices initializes all business logic services
func (app *Application) initServices() error {
	digits := otp.DigitsSix
	if app.cfg.OTPDigits == 8 {
		digits = otp.DigitsEight
	}
	codes, err := otpcode.New(digits)
	if err != nil {
		return fmt.Errorf("failed to initialize code generator: %w", err)
	}

	app.directory, err = service.NewPasswordDirectory(app.db.Users(), app.hasher)
	if err != nil {
		return fmt.Errorf("failed to initialize user directory: %w", err)
	}

	challenges := service.NewChallengeStore(
		app.challenges,
		codes,
		app.clock,
		app.cfg.OTPTTL,
		app.cfg.OTPMaxAttempts,
	)

	app.authService = &service.AuthService{
		Directory: app.directory,
		Issuer: &service.TokenIssuer{
			Keys:     app.keyManager,
			Issuer:   app.cfg.Issuer,
			Audience: app.cfg.Audience,
			Clock:    app.clock,
		},
		Challenges:    challenges,
		Notifier:      app.notifier,
		Clock:         app.clock,
		PendingTTL:    app.cfg.PendingTokenTTL,
		SessionTTL:    app.cfg.SessionTokenTTL,
		NotifyTimeout: app.cfg.NotifyTimeout,
	}

	app.bootstrapService = &service.BootstrapService{
		Store:  app.db,
		Hasher: app.hasher,
		Clock:  app.clock,
	}

	app.housekeepingService = service.NewHousekeepingService(
		challenges,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapEmail == "" {
		return nil
	}

	ctx = slogx.WithContext(ctx, app.logger)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := app.bootstrapService.EnsureUser(ctx, service.BootstrapUser{
		Email:     app.cfg.BootstrapEmail,
		Password:  app.cfg.BootstrapPassword,
		FirstName: app.cfg.BootstrapFirstName,
		LastName:  app.cfg.BootstrapLastName,
	}); err != nil {
		return fmt.Errorf("failed to bootstrap user: %w", err)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	v, err := validatex.New()
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}

	router := httpapi.NewRouter(httpapi.RouterOptions{
		Keys:         app.keyManager.KeySet,
		Verifier:     app.keyManager.Verifier,
		Validator:    v,
		Clock:        app.clock,
		BuildVersion: BuildVersion,
		Database:     app.db,
		Challenges:   app.challenges,
		Logger:       app.logger,
	})

	// Wire services to router
	router.AuthService = app.authService
	router.Directory = app.directory
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
