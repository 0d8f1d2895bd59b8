package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GoblinVrc/service-request-backend/internal/api"
	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/identity"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/notify"
	"github.com/GoblinVrc/service-request-backend/internal/policy"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
	"github.com/GoblinVrc/service-request-backend/internal/service"
	"github.com/GoblinVrc/service-request-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.LogKV("fatal", "config_invalid", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)
	logging.LogKV("info", "service_starting", map[string]interface{}{
		"git_sha":    os.Getenv("GIT_SHA"),
		"build_time": os.Getenv("BUILD_TIME"),
		"auth_mode":  cfg.Auth.Mode,
		"db_driver":  cfg.Database.Driver,
	})

	ctx := context.Background()

	var awsCfg aws.Config
	needsAWS := cfg.Database.SecretARN != "" || cfg.Notify.EmailEnabled || cfg.Notify.SMSEnabled ||
		(cfg.Blob.Bucket != "" && cfg.Blob.Backend == config.BlobBackendS3)
	if needsAWS {
		awsCfg, err = cfg.AWS(ctx)
		if err != nil {
			logging.LogKV("fatal", "aws_config_failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}
	if cfg.Database.SecretARN != "" {
		if err := cfg.ResolveDatabaseURL(ctx, secretsmanager.NewFromConfig(awsCfg)); err != nil {
			logging.LogKV("fatal", "database_secret_failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}

	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logging.LogKV("fatal", "database_unavailable", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := db.InitSchema(schemaCtx, store); err != nil {
		logging.LogKV("warn", "schema_init_failed", map[string]interface{}{"error": err.Error()})
	}
	cancel()

	blob, err := storage.New(ctx, cfg)
	if err != nil {
		logging.LogKV("fatal", "blob_store_failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if !blob.Enabled() {
		logging.LogKV("warn", "blob_store_disabled", map[string]interface{}{"hint": "set BLOB_BUCKET to enable attachments"})
	}

	repo := repository.New(store)
	resolver, err := identity.New(cfg.Auth, repo)
	if err != nil {
		logging.LogKV("fatal", "identity_resolver_failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	pol := policy.Policy{
		AdminTerritoryScoped:    cfg.Policy.AdminTerritoryScoped,
		CustomerTerritoryScoped: cfg.Policy.CustomerTerritoryScoped,
	}
	handler := api.NewHandler(api.Deps{
		Requests:       service.NewRequestService(repo, pol, notify.New(cfg.Notify, awsCfg), models.RequestStatus(cfg.InitialStatus)),
		Lookups:        service.NewLookupService(repo),
		Attachments:    service.NewAttachmentService(repo, blob, pol),
		Auth:           service.NewAuthService(repo, identity.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpirationMinutes)),
		DB:             repo,
		MaxUploadBytes: cfg.MaxUploadBodyBytes,
	})

	router := setupRouter(cfg, handler, resolver)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up graceful shutdown
	go func() {
		logging.LogKV("info", "listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogKV("fatal", "server_failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.LogKV("info", "shutting_down", nil)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogKV("error", "shutdown_failed", map[string]interface{}{"error": err.Error()})
	}
}

func setupRouter(cfg *config.Config, handler *api.Handler, resolver identity.Resolver) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if cfg.AllowAllOrigins() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	api.RegisterRoutes(router, handler, resolver)
	return router
}
