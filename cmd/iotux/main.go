package main

import (
	"context"
	"errors"
	"os"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/TedjaSatedji/iotUx/internal/auth"
	"github.com/TedjaSatedji/iotUx/internal/config"
	"github.com/TedjaSatedji/iotUx/internal/connectivity"
	"github.com/TedjaSatedji/iotUx/internal/logging"
	"github.com/TedjaSatedji/iotUx/internal/profile"
	"github.com/TedjaSatedji/iotUx/internal/store"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "iotux",
		Short: "iotUx IoT monitoring client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newWatchCommand(),
		newStatusCommand(),
		newLoginCommand(),
		newLogoutCommand(),
		newDevicesCommand(),
		newProfileCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "Backend API base URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "Local SQLite database path")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("sync.poll_interval"), "Dashboard refresh interval")
	cmd.PersistentFlags().Duration("probe-timeout", defaults.GetDuration("network.probe_timeout"), "Connectivity probe timeout")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("debug-http-address", defaults.GetString("debug.http_address"), "Local debug endpoint listen address (empty disables)")

	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "sync.poll_interval", "poll-interval")
	bindFlag(cmd, "network.probe_timeout", "probe-timeout")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "debug.http_address", "debug-http-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// app bundles the wired components shared by all subcommands.
type app struct {
	cfg        config.AppConfig
	logger     *zap.Logger
	db         *gorm.DB
	store      *store.Store
	client     *api.Client
	monitor    *connectivity.Monitor
	controller *syncer.Controller
	profiles   *profile.Service
}

func newApp(console bool) (*app, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if console {
		logger, err = logging.NewConsoleLogger(appConfig.LogLevel)
	} else {
		logger, err = logging.NewLogger(appConfig.LogLevel)
	}
	if err != nil {
		return nil, err
	}

	db, err := store.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	localStore, err := store.NewStore(store.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return nil, err
	}

	clientID, err := localStore.EnsureClientID(context.Background(), store.NewUUIDProvider())
	if err != nil {
		logger.Warn("client id unavailable", zap.Error(err))
		clientID = ""
	}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:  appConfig.APIBaseURL,
		Tokens:   localStore,
		ClientID: clientID,
		Timeout:  appConfig.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	monitor, err := connectivity.NewMonitor(connectivity.MonitorConfig{
		Prober:       client,
		ProbeTimeout: appConfig.ProbeTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	controller, err := syncer.NewController(syncer.ControllerConfig{
		Remote:       client,
		Store:        localStore,
		Network:      monitor,
		Tokens:       auth.NewTokenInspector(auth.TokenInspectorConfig{}),
		PollInterval: appConfig.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	profiles, err := profile.NewService(profile.ServiceConfig{Store: localStore, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        appConfig,
		logger:     logger,
		db:         db,
		store:      localStore,
		client:     client,
		monitor:    monitor,
		controller: controller,
		profiles:   profiles,
	}, nil
}

func (a *app) close() {
	a.controller.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
