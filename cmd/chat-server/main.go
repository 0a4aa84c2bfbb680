package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lawlink-chat/internal/config"
	"lawlink-chat/internal/devserver"
	"lawlink-chat/internal/domain"
	"lawlink-chat/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := devserver.New(devserver.Config{
		AuthSecret:    cfg.Auth.Secret,
		MediaSecret:   cfg.Auth.MediaSecret,
		MediaValidity: cfg.Auth.MediaValidity,
	})

	// Seed a demo room so a freshly started client has somewhere to talk
	server.Store().Seed(domain.Room{
		ID: cfg.Client.RoomID,
		Participants: []domain.Participant{
			{ID: "demo-user", DisplayName: "Demo User"},
			{ID: "demo-lawyer", DisplayName: "Demo Lawyer"},
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		logger.Info("chat dev server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
