package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"signup-gateway/internal/common/config"
	"signup-gateway/internal/common/database"
	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/observability"
	"signup-gateway/internal/festival"
	"signup-gateway/internal/gateway"
	"signup-gateway/internal/provider"
	"signup-gateway/internal/wizard"
	"signup-gateway/internal/wordpress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting signup gateway", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"address":     cfg.Server.Address,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	client := festival.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, config.GetDuration(cfg.Backend.Timeout), log)

	var mutator gateway.Mutator = client
	if cfg.WordPress.Enabled {
		mutator = wordpress.NewBridge(cfg.WordPress.AjaxURL, cfg.WordPress.Nonce, config.GetDuration(cfg.Backend.Timeout), log)
		log.Info("subscription mutations routed through wordpress", map[string]interface{}{
			"ajaxUrl": cfg.WordPress.AjaxURL,
		})
	}

	store, redisClient, err := buildStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize cache store", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	prov := provider.New(client, store, config.GetDuration(cfg.Cache.TTL), provider.SystemClock(), log)

	if cfg.Dev.Username != "" {
		prov.Login(context.Background(), cfg.Dev.Username, &festival.WordPressUser{
			Login:       cfg.Dev.Username,
			DisplayName: cfg.Dev.Username,
		})
		ensureDevParticipant(context.Background(), client, cfg, log)
		log.Info("dev user session active", map[string]interface{}{
			"username": cfg.Dev.Username,
			"labels":   cfg.Dev.UserLabels,
		})
	}

	flow, err := wizard.DefaultFlow()
	if err != nil {
		log.Error("failed to compile wizard flow", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	router := gateway.NewRouter(gateway.RouterConfig{
		Logger:        log,
		Config:        cfg,
		Provider:      prov,
		Mutator:       mutator,
		Labels:        client,
		Records:       client,
		Flow:          flow,
		Observability: obs,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("http server failed", zap.Error(err))
		}
	}()
	log.Info("gateway listening", map[string]interface{}{"address": cfg.Server.Address})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("shutdown complete", nil)
}

// ensureDevParticipant registers the simulated dev user on the backend
// when it does not exist yet, with the configured wizard labels.
func ensureDevParticipant(ctx context.Context, client *festival.Client, cfg *config.Config, log logger.Logger) {
	_, err := client.Participant(ctx, cfg.Dev.Username)
	if err == nil {
		return
	}
	se := apperrors.AsStandard(err)
	if se == nil || se.Code != apperrors.ErrCodeNotFound {
		log.Warn("could not verify dev participant", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := client.CreateParticipant(ctx, &festival.Participant{
		Username: cfg.Dev.Username,
		Labels:   cfg.Dev.UserLabels,
	}); err != nil {
		log.Warn("could not create dev participant", map[string]interface{}{"error": err.Error()})
	}
}

// buildStore selects the cache backend. Redis connectivity is retried with
// backoff so the gateway survives a slow Redis start during deploys.
func buildStore(cfg *config.Config, log logger.Logger) (provider.Store, *database.RedisClient, error) {
	if cfg.Cache.Backend != "redis" {
		return provider.NewMemoryStore(), nil, nil
	}

	client, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	backoff := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx)
		cancel()
		if err == nil {
			log.Info("connected to redis", map[string]interface{}{"address": cfg.Redis.Address})
			return provider.NewRedisStore(client, cfg.App.Name, config.GetDuration(cfg.Cache.TTL)), client, nil
		}
		log.Warn("redis not reachable, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		time.Sleep(backoff)
		backoff *= 2
	}
	client.Close()
	return nil, nil, fmt.Errorf("redis unreachable after retries: %w", err)
}
