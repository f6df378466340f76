package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rocket-rental/internal/cache"
	"rocket-rental/internal/config"
	"rocket-rental/internal/domain"
	apphttp "rocket-rental/internal/http"
	"rocket-rental/internal/repository/sqlite"
	"rocket-rental/internal/service"
	"rocket-rental/internal/session"
	"rocket-rental/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	profileCache := cache.NewRedis(ctx, cache.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		Prefix:   "rocket:",
	}, logger)
	defer profileCache.Close()

	var images service.ImageResolver
	if cfg.Storage.Bucket != "" {
		store, err := storage.NewFromConfig(ctx, cfg)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
		images = store
	} else {
		logger.Info("storage bucket not configured, profile images disabled")
	}

	var cachePinger apphttp.Pinger
	if profileCache.Enabled() {
		cachePinger = profileCache
	}

	userService := service.NewUserService(userRepo)
	profileService := service.NewProfileService(userRepo, userService, service.ProfileServiceConfig{
		Cache:    profileCache,
		CacheTTL: cfg.CacheTTL(),
		Images:   images,
		Logger:   logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Deps{
		Users:    userService,
		Profiles: profileService,
		Provisioners: []service.RoleProvisioner{
			service.NewRoleProvisioner(userRepo, domain.CapabilityHost, profileCache, logger),
			service.NewRoleProvisioner(userRepo, domain.CapabilityRenter, profileCache, logger),
		},
		Sessions: session.NewManager(cfg.Auth.JWTSecret, cfg.SessionTTL(), cfg.Auth.CookieSecure),
		Cache:    cachePinger,
		Logger:   logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}
