package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"loan-sync/config"
	"loan-sync/controllers"
	"loan-sync/middleware"
	"loan-sync/routes"
	"loan-sync/services"
	"loan-sync/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	config.InitLogger(cfg)
	config.Log.WithField("environment", cfg.Environment).Info("Starting server")

	// Missing store secrets are not fatal: the API reports them per request.
	resolver := store.NewResolver(cfg.StoreOptions(), config.Log)
	if cfg.DBMigrate {
		migrate(resolver)
	}

	var media services.MediaOffloader
	if cfg.MediaEnabled() {
		awsCfg, err := config.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			config.Log.Fatal("Failed to initialize AWS: ", err)
		}
		media = services.NewMediaService(awsCfg, cfg.AWSBucketName)
	}

	syncService := services.NewSyncService(resolver, media)
	syncController := controllers.NewSyncController(syncService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(config.Log))
	r.Use(middleware.Metrics())

	trustedProxies := []string{"127.0.0.1", "::1"}
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		config.Log.Fatal("Failed to set trusted proxies: ", err)
	}

	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.BodyLimit(cfg.BodyLimitMB))

	routes.SetupRoutes(r, syncController, staticDir(cfg))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		config.Log.Infof("Server running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Log.Fatal("Server failed to start: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	config.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		config.Log.WithError(err).Error("HTTP server shutdown error")
	}
	if err := resolver.Close(); err != nil {
		config.Log.WithError(err).Error("Store shutdown error")
	}
}

func migrate(resolver *store.Resolver) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := resolver.Get(ctx)
	if err != nil {
		config.Log.WithError(err).Warn("Skipping migration: store not available")
		return
	}
	ran, err := store.Migrate(ctx, st)
	if err != nil {
		config.Log.Fatal("Failed to migrate database: ", err)
	}
	if ran {
		config.Log.Info("✅ Database schema is up to date")
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSOrigins
	}
	return c
}

// staticDir returns the built client directory when it should be served.
func staticDir(cfg *config.Config) string {
	if !cfg.IsProduction() || cfg.StaticDir == "" {
		return ""
	}
	if info, err := os.Stat(cfg.StaticDir); err != nil || !info.IsDir() {
		return ""
	}
	return cfg.StaticDir
}
