package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/authz"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/codestore"
	httpapi "github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/http"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/metrics"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/notify"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/service"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store/drivers/postgres"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store/drivers/sqlite"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/cryptox"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/httpx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/jwtx"
	"github.com/mwafayee/TCSS460-CredentialsAPI/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application owns the credentials service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	metrics    *metrics.Metrics
	redis      *redis.Client
	gate       *authz.Gate

	credentials         *service.CredentialUpdater
	accountService      *service.AccountService
	verificationService *service.VerificationService
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	server *http.Server
}

func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "credentials",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New builds the application: storage with migrations applied, keys,
// services and the HTTP server. Nothing is listening until Run.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
		gate:   authz.NewGate(authz.DefaultHierarchy()),
	}

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	app.logger.Info("database migrations applied", "postgres", cfg.UsesPostgres())

	if app.keyManager, err = InitKeys(cfg, app.logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	if app.metrics, err = metrics.New(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	if err := app.initServices(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := app.initHTTP(ctx); err != nil {
		app.closeResources()
		return nil, err
	}
	return app, nil
}

// OpenStore picks the driver from DatabaseURL. Migrations are not applied.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.UsesPostgres() {
		s, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	}
	s, err := sqlite.NewStore(SQLiteDSN(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return s, nil
}

var sqlitePragmas = []struct{ name, value string }{
	{"busy_timeout", "busy_timeout(5000)"},
	{"journal_mode", "journal_mode(WAL)"},
}

// SQLiteDSN turns a file path or file: URI into a DSN carrying the
// connection pragmas. A query already present is kept, and a pragma the
// caller set explicitly is not overridden.
func SQLiteDSN(raw string) string {
	dsn := raw
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	path, query, _ := strings.Cut(dsn, "?")

	params := []string{}
	if query != "" {
		params = append(params, query)
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(query, "_pragma="+p.name) {
			continue
		}
		params = append(params, "_pragma="+p.value)
	}
	return path + "?" + strings.Join(params, "&")
}

// NewCredentialUpdater hashes with Argon2id and the pepper stored at
// cfg.PepperFile, creating the file on first use.
func NewCredentialUpdater(cfg Config, s store.Store) (*service.CredentialUpdater, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("load pepper: %w", err)
	}
	return service.NewCredentialUpdater(s, cryptox.NewArgon2Hasher(pepper)), nil
}

func (app *Application) initServices() error {
	creds, err := NewCredentialUpdater(app.cfg, app.db)
	if err != nil {
		return err
	}
	app.credentials = creds

	tmpl, err := notify.LoadTemplates(app.cfg.MessageTemplatesFile)
	if err != nil {
		return fmt.Errorf("load message templates: %w", err)
	}

	app.accountService = &service.AccountService{
		Store:       app.db,
		Gate:        app.gate,
		Credentials: creds,
		Metrics:     app.metrics,
	}
	app.verificationService = &service.VerificationService{
		Store:               app.db,
		Codes:               codestore.New(app.db),
		Credentials:         creds,
		Sender:              app.newSender(),
		Templates:           tmpl,
		Metrics:             app.metrics,
		VerificationCodeTTL: app.cfg.VerificationCodeTTL,
		PasswordResetTTL:    app.cfg.PasswordResetTTL,
		PasswordResetURL:    app.cfg.PasswordResetURL,
		MaxConfirmAttempts:  app.cfg.VerificationMaxAttempts,
	}
	app.tokenService = &service.TokenService{
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTokenTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.RetentionPeriod,
	)
	app.housekeepingService.Metrics = app.metrics
	return nil
}

// newSender routes email over SMTP and SMS over the webhook, falling back to
// the log for whichever is not configured.
func (app *Application) newSender() notify.Sender {
	mux := &notify.Mux{Email: notify.LogSender{}, SMS: notify.LogSender{}}
	if app.cfg.SMTPHost != "" {
		mux.Email = notify.NewSMTPSender(app.cfg.SMTPHost, app.cfg.SMTPPort, app.cfg.SMTPFrom, app.cfg.SMTPUser, app.cfg.SMTPPassword)
		app.logger.Info("email delivery via smtp", "host", app.cfg.SMTPHost, "port", app.cfg.SMTPPort)
	} else {
		app.logger.Warn("SMTP_HOST not set, emails are only logged")
	}
	if app.cfg.SMSWebhookURL != "" {
		mux.SMS = notify.NewWebhookSMSSender(app.cfg.SMSWebhookURL, app.cfg.SMSWebhookToken)
		app.logger.Info("sms delivery via webhook")
	} else {
		app.logger.Warn("SMS_WEBHOOK_URL not set, text messages are only logged")
	}
	return mux
}

func (app *Application) initHTTP(ctx context.Context) error {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.gate,
		BuildVersion,
		app.db,
		app.metrics,
		app.logger,
	)

	if len(app.cfg.TrustedProxies) > 0 {
		proxies, err := httpx.ParseTrustedProxies(app.cfg.TrustedProxies)
		if err != nil {
			return fmt.Errorf("parse trusted proxies: %w", err)
		}
		router.ClientIP = httpx.TrustedProxyIPExtractor(proxies)
		app.logger.Info("forwarding headers trusted", "proxies", app.cfg.TrustedProxies)
	}

	if app.cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", app.cfg.RedisAddr, err)
		}
		router.Limiters = httpx.NewRedisLimiterFactory(app.redis, "credentials:ratelimit")
		app.logger.Info("rate limits shared through redis", "addr", app.cfg.RedisAddr)
	}

	router.AccountService = app.accountService
	router.VerificationService = app.verificationService
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// Bootstrap creates the configured Owner on an empty store.
func (app *Application) Bootstrap(ctx context.Context) error {
	if !app.cfg.BootstrapEnabled() {
		return nil
	}
	ctx = slogx.WithContext(ctx, app.logger)
	_, _, err := app.accountService.Bootstrap(ctx, service.BootstrapInput{
		Username: app.cfg.BootstrapUsername,
		Email:    app.cfg.BootstrapEmail,
		Password: app.cfg.BootstrapPassword,
	})
	if err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}
	return nil
}

// Run serves HTTP and runs housekeeping until ctx is cancelled or either
// fails, then shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	defer app.closeResources()

	if err := app.Bootstrap(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("credentials service starting", "addr", app.server.Addr, "version", BuildVersion)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.housekeepingService.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down credentials service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("graceful server shutdown failed", "error", err)
			return app.server.Close()
		}
		return nil
	})

	err := g.Wait()
	app.logger.Info("credentials service stopped")
	return err
}

func (app *Application) closeResources() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
	}
}
