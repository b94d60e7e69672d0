package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"teamsync/api/internal/app"
	"teamsync/api/internal/config"
	"teamsync/api/internal/relay"
	"teamsync/api/internal/session"
)

func main() {
	cfg := config.Load()
	registry := relay.NewRegistry()

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for token revocation")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithRevocationStore(cfg, registry, redisStore)
	} else {
		log.Printf("Token revocation disabled (REDIS_URL not set)")
		service = app.New(cfg, registry)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	// No read/write timeouts: subscribe streams stay open until the client leaves.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(registry.CloseAll)

	go func() {
		log.Printf("Sync relay listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
