package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/server"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the dashboard state, refreshing while online",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}
}

func runWatch(ctx context.Context) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.monitor.Run(signalCtx, app.cfg.PollInterval)

	states, unsubscribe := app.controller.Subscribe(signalCtx)
	defer unsubscribe()

	if err := app.controller.Start(signalCtx); err != nil {
		return err
	}
	if app.controller.CurrentState().Kind == syncer.KindUnauthenticated {
		return fmt.Errorf("not signed in, run `iotux login` first")
	}

	errCh := make(chan error, 1)
	if app.cfg.DebugHTTPAddress != "" {
		handler, err := server.NewHTTPHandler(server.Dependencies{
			Sync:    app.controller,
			Network: app.monitor,
			Storage: app.store,
			Logger:  app.logger,
		})
		if err != nil {
			return err
		}
		debugServer := &http.Server{Addr: app.cfg.DebugHTTPAddress, Handler: handler}
		go func() {
			app.logger.Info("debug endpoint listening", zap.String("address", app.cfg.DebugHTTPAddress))
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = debugServer.Shutdown(shutdownCtx)
		}()
	}

	for {
		select {
		case <-signalCtx.Done():
			return nil
		case err := <-errCh:
			return err
		case state := <-states:
			printState(app.logger, state)
		}
	}
}

func printState(logger *zap.Logger, state syncer.State) {
	switch state.Kind {
	case syncer.KindLoading:
		logger.Info("loading dashboard")
	case syncer.KindReady:
		logger.Info("dashboard updated",
			zap.Int("devices", len(state.Snapshot.Devices)),
			zap.Int("online", state.Snapshot.OnlineDeviceCount()),
			zap.Int("offline", state.Snapshot.OfflineDeviceCount()),
			zap.Int("alerts", len(state.Snapshot.Alerts)),
			zap.Bool("stale", state.Stale))
	case syncer.KindUnauthenticated:
		logger.Warn("session ended, sign in again")
	case syncer.KindError:
		logger.Error("dashboard refresh failed",
			zap.String("message", state.Message),
			zap.Bool("cached_available", state.Cached != nil))
	}
}
