package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"cityServiceDesk/internal/auth"
	"cityServiceDesk/internal/config"
	"cityServiceDesk/internal/db"
	grpcserver "cityServiceDesk/internal/grpc"
	"cityServiceDesk/internal/httpapi"
	"cityServiceDesk/internal/service"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	rollback := pflag.Bool("rollback", false, "roll back the last applied migration and exit")
	bootstrapAdmin := pflag.String("bootstrap-admin", "", "create or promote the given login to ADMIN and exit")
	issueToken := pflag.String("issue-token", "", "print a bearer token for the given login and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.String())

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "error", err)
		}
	}()

	if *rollback {
		version, err := db.RollbackLast(d)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		logger.Info("rolled back migration", "version", version)
		return nil
	}

	users := repository.NewUserRepository(d)
	directory := service.NewDirectory(users)
	desk := service.NewManager(repository.NewCategoryRepository(d), repository.NewRequestRepository(d))

	ctx := context.Background()
	if *bootstrapAdmin != "" {
		u, err := directory.EnsureAdmin(ctx, *bootstrapAdmin)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin ready", "login", u.Login, "id", u.ID)
		return printToken(cfg, u)
	}
	if *issueToken != "" {
		u, err := directory.Lookup(ctx, *issueToken)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		return printToken(cfg, u)
	}

	// Start gRPC
	shutdownGRPC, err := grpcserver.StartGRPC(cfg, grpcserver.Deps{Users: users, Desk: desk, Logger: logger})
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}
	logger.Info("gRPC server listening", "address", cfg.GRPC.Address)

	// Start HTTP
	gin.SetMode(gin.ReleaseMode)
	router := httpapi.SetupRouter(httpapi.NewHandler(desk, directory), httpapi.RouterConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		Users:       users,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	})
	httpSrv := &http.Server{Addr: cfg.HTTP.Address, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	httpErr := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()
	logger.Info("HTTP server listening", "address", cfg.HTTP.Address)

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-httpErr:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := shutdownGRPC(shutdownCtx); err != nil {
		logger.Error("grpc shutdown", "error", err)
	}
	return nil
}

func printToken(cfg *config.Config, u *models.User) error {
	token, err := auth.IssueToken(cfg.Auth.JWTSecret, u, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
