package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"

	sessionapi "go.pilab.hu/gtgram/api/echo"
	"go.pilab.hu/gtgram/cache"
	rediscache "go.pilab.hu/gtgram/cache/redis"
	"go.pilab.hu/gtgram/config"
	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/auth"
	"go.pilab.hu/gtgram/internal/identity"
	"go.pilab.hu/gtgram/internal/metrics"
	"go.pilab.hu/gtgram/internal/server"
	"go.pilab.hu/gtgram/log"
	"go.pilab.hu/gtgram/mongodb"
	"go.pilab.hu/gtgram/services"
	"go.pilab.hu/gtgram/tracing"
)

var (
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		fallbackLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		fallbackLogger.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting gtgram session server...")
	appLogger.Info(context.Background(), "Configuration loaded successfully", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_uri":     cfg.MongoURI,
		"mongo_db_name": cfg.MongoDBName,
		"cache_backend": cfg.CacheBackend,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	// Initialize OpenTelemetry TracerProvider
	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	metrics.Register(prometheus.DefaultRegisterer)

	// --- Initialize Dependencies ---
	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	profileRepo, err := mongodb.NewProfileRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ProfileRepository", err, nil)
	}

	sessionCache, closeCache, err := newSessionCache(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize session cache", err, nil)
	}

	// Identity providers
	passwordHasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	credStore, err := mongodb.NewCredentialRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize CredentialRepository", err, nil)
	}
	passwordProvider := identity.NewPasswordProvider(credStore, passwordHasher)

	// All providers feed one event stream so the reconciler sees every
	// sign-in state transition regardless of entry path.
	providerList := []domain.IdentityProvider{passwordProvider}
	var googleProvider *identity.GoogleProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		googleProvider = identity.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		providerList = append(providerList, googleProvider)
	} else {
		appLogger.Warn(ctx, "Google sign-in disabled, no client registration configured")
	}
	providers := identity.NewMultiProvider(providerList...)

	reconciler := services.NewReconciler(sessionCache, profileRepo, providers,
		services.WithValidityWindow(time.Duration(cfg.SessionValidityDays)*24*time.Hour),
		services.WithRemoteTimeout(time.Duration(cfg.RemoteTimeoutSeconds)*time.Second),
	)
	defer reconciler.Close()

	if restored := reconciler.Bootstrap(ctx); restored != nil {
		appLogger.Info(ctx, "Session restored from cache", map[string]interface{}{
			"user_id":  restored.ID,
			"username": restored.Username,
		})
	}

	routes := services.DefaultRoutes()
	orchestrator := services.NewRedirectOrchestrator(routes, services.NavigatorFunc(func(route string) {
		appLogger.Debug(ctx, "Navigation requested", map[string]interface{}{"route": route})
	}))
	watchCancel := orchestrator.Attach(reconciler, func() string { return routes.Home })
	defer watchCancel()

	provisioner := services.NewAutoProvisioner(reconciler, profileRepo)
	registrar := services.NewRegistrar(reconciler, profileRepo, credStore, passwordHasher)
	api := sessionapi.NewSessionAPI(reconciler, provisioner, registrar, orchestrator, passwordProvider, googleProvider, routes)

	// --- HTTP Server ---
	e := server.NewHTTPServer(cfg, appLogger, api)

	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}

	if closeCache != nil {
		if err := closeCache(); err != nil {
			appLogger.Error(shutdownCtx, "Session cache close error", err, nil)
		}
	}

	if err := tracing.Shutdown(shutdownCtx, tracerProvider); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
	}

	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// newSessionCache builds the configured cache backend. The returned close
// function may be nil when the backend holds no resources.
func newSessionCache(cfg *config.ServerConfig) (cache.SessionCache, func() error, error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		c := rediscache.NewSessionCache(client, cfg.RedisPrefix)
		return c, client.Close, nil
	case "memory":
		c := cache.NewMemorySessionCache(time.Duration(cfg.SessionValidityDays) * 24 * time.Hour)
		return c, c.Close, nil
	case "bbolt", "":
		c, err := cache.NewBBoltSessionCache(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
