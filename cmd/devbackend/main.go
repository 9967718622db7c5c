package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"altron/internal/devbackend"
	"altron/internal/logging"
)

func run(args []string) error {
	fs := flag.NewFlagSet("devbackend", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8000", "listen address")
	unhealthy := fs.Bool("unhealthy", false, "start with /health answering 503")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New(*logLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	server := devbackend.New(nil, logger)
	server.SetHealthy(!*unhealthy)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      server.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev backend listening", zap.String("addr", *addr), zap.Bool("healthy", !*unhealthy))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("dev backend stopped")
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
