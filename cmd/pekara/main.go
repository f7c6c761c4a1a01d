// Package main запускает HTTP-сервер сервиса приёма заказов пекарни.
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
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pekara-system/internal/completion"
	"github.com/mmeshcher/pekara-system/internal/config"
	"github.com/mmeshcher/pekara-system/internal/events"
	"github.com/mmeshcher/pekara-system/internal/handler"
	"github.com/mmeshcher/pekara-system/internal/middleware"
	"github.com/mmeshcher/pekara-system/internal/repository"
	"github.com/mmeshcher/pekara-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Infow("DATABASE_URI is empty, using in-memory storage with demo catalog")
		repo = repository.NewMemoryRepositoryWithDefaults()
	}

	completer := completion.NewClient(cfg.CompletionAddress, cfg.CompletionAPIKey, cfg.CompletionModel)

	var eventSink service.EventSink
	if cfg.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			sugar.Fatalw("nats initialization error", "error", err.Error())
		}
		defer publisher.Close()
		eventSink = publisher
	}

	svc := service.NewService(repo, completer, eventSink, logger)
	defer svc.Close()

	adminAuth := middleware.NewAdminAuth(cfg.AdminLogin, cfg.AdminPassword)
	if cfg.AdminLogin == "" {
		sugar.Warnw("ADMIN_LOGIN is empty, admin API is unprotected")
	}

	h := handler.NewHandler(svc, logger, adminAuth)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pekara server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
