package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/terraguardian/core/internal/awards"
	"github.com/terraguardian/core/internal/config"
	"github.com/terraguardian/core/internal/database"
	"github.com/terraguardian/core/internal/logging"
	"github.com/terraguardian/core/internal/quests"
	"github.com/terraguardian/core/internal/remote"
	"github.com/terraguardian/core/internal/submissions"
	"github.com/terraguardian/core/internal/syncer"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "terra-agent",
		Short: "TerraGuardian offline field agent and sync daemon",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "Base URL of the remote API")
	cmd.PersistentFlags().String("api-token", "", "Bearer token for the remote API (overrides env)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("agent.database_path"), "Local SQLite database path")
	cmd.PersistentFlags().String("user-id", "", "Owning user id for the local store")
	cmd.PersistentFlags().Duration("sync-interval", defaults.GetDuration("sync.interval"), "Interval between periodic sync passes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "api.token", "api-token")
	bindFlag(cmd, "agent.database_path", "database-path")
	bindFlag(cmd, "agent.user_id", "user-id")
	bindFlag(cmd, "sync.interval", "sync-interval")
	bindFlag(cmd, "log.level", "log-level")
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

func runAgent(ctx context.Context) error {
	appConfig, err := config.LoadAgent(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	owner, err := quests.NewUserID(appConfig.UserID)
	if err != nil {
		return err
	}

	db, err := database.OpenAgent(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := submissions.NewStore(submissions.StoreConfig{
		Database:   db,
		Owner:      owner,
		Clock:      time.Now,
		IDProvider: submissions.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	apiClient, err := remote.NewClient(remote.ClientConfig{
		BaseURL:    appConfig.APIBaseURL,
		Token:      appConfig.APIToken,
		HTTPClient: &http.Client{Timeout: appConfig.RequestTimeout},
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	awardEngine, err := awards.NewEngine(awards.EngineConfig{
		Snapshots: apiClient,
		Badges:    apiClient,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	engine, err := syncer.NewEngine(syncer.Config{
		Store:       store,
		Remote:      apiClient,
		Awards:      awardEngine,
		IDProvider:  submissions.NewUUIDProvider(),
		Clock:       time.Now,
		MaxAttempts: appConfig.MaxAttempts,
		BackoffBase: appConfig.BackoffBase,
		BackoffMax:  appConfig.BackoffMax,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshLocalMirror(signalCtx, store, apiClient, logger)

	engine.StartPeriodic(signalCtx, appConfig.SyncInterval)
	engine.NotifyOnline(signalCtx)
	engine.SyncNow(signalCtx)

	logger.Info("agent started",
		zap.String("user_id", owner.String()),
		zap.String("api", appConfig.APIBaseURL),
		zap.Duration("sync_interval", appConfig.SyncInterval))

	<-signalCtx.Done()
	logger.Info("agent stopping, waiting for in-flight sync pass")
	engine.Wait()
	return nil
}

// refreshLocalMirror pulls the quest catalog and the user row into the local
// cache. Failures are tolerated; the agent keeps working from stale caches.
func refreshLocalMirror(ctx context.Context, store *submissions.Store, apiClient *remote.Client, logger *zap.Logger) {
	catalog, err := apiClient.ListQuests(ctx)
	if err != nil {
		logger.Warn("quest catalog refresh skipped", zap.Error(err))
	} else if err := store.ReplaceCatalog(ctx, catalog); err != nil {
		logger.Warn("quest catalog cache update failed", zap.Error(err))
	}

	user, err := apiClient.CurrentUser(ctx)
	if err != nil {
		logger.Warn("user mirror refresh skipped", zap.Error(err))
		return
	}
	if err := store.SaveUser(ctx, user); err != nil {
		logger.Warn("user mirror update failed", zap.Error(err))
	}
}
