package cmd

import (
	"context"
	"os"
	"time"

	accessApp "github.com/AzielCF/az-admin/access/application"
	accountsApp "github.com/AzielCF/az-admin/accounts/application"
	accountsRepo "github.com/AzielCF/az-admin/accounts/repository"
	analyticsApp "github.com/AzielCF/az-admin/analytics/application"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditRepo "github.com/AzielCF/az-admin/audit/repository"
	bulkApp "github.com/AzielCF/az-admin/bulk/application"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	cacheRepo "github.com/AzielCF/az-admin/cache/repository"
	coreconfig "github.com/AzielCF/az-admin/core/config"
	coreDB "github.com/AzielCF/az-admin/core/database"
	settingsApp "github.com/AzielCF/az-admin/core/settings/application"
	settingsInfra "github.com/AzielCF/az-admin/core/settings/infrastructure"
	"github.com/AzielCF/az-admin/infrastructure/valkey"
	monitorApp "github.com/AzielCF/az-admin/monitor/application"
	notifyApp "github.com/AzielCF/az-admin/notify/application"
	notifyRepo "github.com/AzielCF/az-admin/notify/repository"
	quotaApp "github.com/AzielCF/az-admin/quota/application"
	quotaDomain "github.com/AzielCF/az-admin/quota/domain"
	quotaRepo "github.com/AzielCF/az-admin/quota/repository"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	cfg *coreconfig.Config

	db           *gorm.DB
	valkeyClient *valkey.Client

	enforcer      *accessApp.Enforcer
	trail         *auditApp.Trail
	cacheStore    *cacheApp.Store
	memoryCounter *quotaRepo.MemoryCounter
	quotaLimiter  *quotaApp.Limiter
	dispatcher    *notifyApp.Dispatcher
	moderation    *accountsApp.ModerationService
	bulkEngine    *bulkApp.Engine
	generator     *monitorApp.Generator
	aggregator    *analyticsApp.Aggregator
	settingsSvc   *settingsApp.SettingsService
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Short: "Admin control plane",
	Long: `Admin API for a user-management backend: cached reads, per-identity quotas,
audited moderation and bulk mutations, health alerts and analytics.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig loads configuration from the environment, the optional .env
// file and any bound flags.
func initEnvConfig() {
	loaded, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] failed to load config: %v", err)
	}
	cfg = loaded

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("base-path", "", "base path for subpath deployment | example: --base-path=/admin-api")
	flags.String("db-driver", "", "database driver (sqlite or postgres) | example: --db-driver=postgres")
	flags.String("db-name", "", "sqlite file or postgres database name | example: --db-name=storages/admin.db")
	flags.Bool("valkey", false, "use valkey for the cache and quota counters | example: --valkey=true")
	flags.String("valkey-address", "", "valkey address | example: --valkey-address=localhost:6379")
	flags.String("quota-test-identity", "", "identity exempt from quotas in tests | example: --quota-test-identity=127.0.0.1")

	bind := map[string]string{
		"app_port":            "port",
		"app_debug":           "debug",
		"app_base_path":       "base-path",
		"db_driver":           "db-driver",
		"db_name":             "db-name",
		"valkey_enabled":      "valkey",
		"valkey_address":      "valkey-address",
		"quota_test_identity": "quota-test-identity",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// initApp opens the stores and wires every service. Commands only read the
// package level handles it fills.
func initApp() {
	ctx := context.Background()

	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}

	accounts := accountsRepo.NewAccountsGormRepository(db)
	audits := auditRepo.NewAuditGormRepository(db)
	settingsRepo := settingsInfra.NewSettingsGormRepository(db)
	notifications := notifyRepo.NewNotificationGormRepository(db)
	if err := coreDB.Migrate(ctx, accounts, audits, settingsRepo, notifications); err != nil {
		logrus.Fatalf("[APP] %v", err)
	}

	var (
		backend cacheDomain.Backend
		counter quotaDomain.Counter
	)
	if cfg.Cache.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.ConfigFrom(cfg.Cache))
		if err != nil {
			logrus.Warnf("[CACHE] valkey unavailable, falling back to in-process stores: %v", err)
		} else {
			valkeyClient = client
		}
	}
	if valkeyClient != nil {
		backend = cacheRepo.NewValkeyBackend(valkeyClient)
		counter = quotaRepo.NewValkeyCounter(valkeyClient)
		logrus.Infof("[CACHE] using valkey at %s", cfg.Cache.ValkeyAddress)
	} else {
		backend = cacheRepo.NewMemoryBackend()
		memoryCounter = quotaRepo.NewMemoryCounter()
		counter = memoryCounter
	}

	enforcer = accessApp.MustNewEnforcer()
	trail = auditApp.NewTrail(audits)
	cacheStore = cacheApp.NewStore(backend, cacheApp.Options{
		FailureThreshold: cfg.Cache.FailureThreshold,
		RetryAfter:       cfg.Cache.RetryAfter,
		OpTimeout:        cfg.Cache.OpTimeout,
	})

	dispatcher = notifyApp.NewDispatcher(
		notifyApp.NewService(notifications, notifyApp.LogEmailSender{}),
		cfg.Notify,
	)

	settingsSvc = settingsApp.NewSettingsService(db, settingsRepo, trail, cacheStore, enforcer, *cfg)
	quotaLimiter = quotaApp.NewLimiter(counter, quotaApp.RulesFrom(settingsSvc.QuotaConfig(ctx)), cfg.Quota.TestIdentity)
	settingsSvc.OnChange(func(ds *settingsApp.DynamicSettings) {
		quotaLimiter.SetRules(quotaApp.RulesFrom(ds.ApplyQuota(cfg.Quota)))
	})

	moderation = accountsApp.NewModerationService(db, accounts, trail, cacheStore, dispatcher, enforcer)
	bulkEngine = bulkApp.NewEngine(db, accounts, trail, cacheStore, enforcer)
	generator = monitorApp.NewGenerator(accounts, cacheStore, settingsSvc)
	aggregator = analyticsApp.NewAggregator(
		analyticsApp.CountersFrom(accounts, trail),
		cacheStore,
		trail,
		enforcer,
		cfg.Cache.AnalyticsTTL,
		cfg.Analytics.DefaultPeriod,
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp releases every connection opened by initApp.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if dispatcher != nil {
		dispatcher.Stop()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
