package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/learnhub/internal/config"
	"github.com/iudanet/learnhub/internal/logship"
	"github.com/iudanet/learnhub/internal/server/app"
	"github.com/iudanet/learnhub/internal/server/handlers"
	"github.com/iudanet/learnhub/internal/server/middleware"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const (
	logBufferSize   = 1024
	logFlushTimeout = 5 * time.Second
	defaultEnvFile  = ".env"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		printVersion()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	config.LoadEnv(ctx, bootLogger, defaultEnvFile)

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	handler := app.NewLogHandler(os.Stdout, level, cfg.LogFormat)

	var shipper *logship.Shipper
	if cfg.RabbitMQURL != "" {
		publisher, err := logship.DialAMQP(cfg.RabbitMQURL)
		if err != nil {
			// Без брокера сервис работает, логи остаются локальными
			bootLogger.Warn("log shipping disabled", slog.Any("error", err))
		} else {
			defer func() { _ = publisher.Close() }()
			shipper = logship.NewShipper(publisher, logBufferSize)
			handler = logship.NewHandler(handler, shipper, cfg.ServiceName, requestInfo)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	handlers.Version = Version

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close app", slog.Any("error", err))
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	runErr := a.Run(ctx, ln)

	if shipper != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
		defer cancel()
		if err := shipper.Close(flushCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
		if n := shipper.Dropped(); n > 0 {
			fmt.Fprintf(os.Stderr, "dropped %d log messages\n", n)
		}
	}

	return runErr
}

// requestInfo достает данные запроса для строк, уходящих в брокер
func requestInfo(ctx context.Context) (string, string, bool) {
	info, ok := middleware.RequestInfoFromContext(ctx)
	if !ok {
		return "", "", false
	}
	return info.URL, info.CorrelationID, true
}

func printVersion() {
	fmt.Printf("LearnHub User Service\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
