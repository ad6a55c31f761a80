// Command sentineld runs the emergency sentinel headless and serves its HTTP
// API, for browsers and phones that push their own speech recognition.
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

	"safetour/internal/bootstrap"
)

func main() {
	armOnStart := flag.Bool("arm", false, "arm trigger detection at startup")
	flag.Parse()

	if err := run(*armOnStart); err != nil {
		fmt.Fprintln(os.Stderr, "sentineld:", err)
		os.Exit(1)
	}
}

func run(armOnStart bool) error {
	services, err := bootstrap.Build(nil)
	if err != nil {
		return err
	}
	defer services.Close()
	logger := services.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := services.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if armOnStart {
		if err := services.Controller.Arm(ctx); err != nil {
			logger.Warn("arm at startup failed", zap.Error(err))
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	return nil
}
