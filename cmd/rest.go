package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	settingsApp "github.com/AzielCF/az-admin/core/settings/application"
	"github.com/AzielCF/az-admin/pkg/utils"
	quotaApp "github.com/AzielCF/az-admin/quota/application"
	"github.com/AzielCF/az-admin/ui/rest"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/AzielCF/az-admin/ui/websocket"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const counterSweepInterval = time.Minute

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the admin API over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	// Override basic auth if flag is provided
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalln(err)
	}

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "Az-Admin Control Plane",
		ServerHeader:            "Hidden",
		JSONEncoder:             json.Marshal,
		JSONDecoder:             json.Unmarshal,
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID, " + middleware.HeaderActorID + ", " + middleware.HeaderActorRole,
		ExposeHeaders: "X-Cache, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}))
	// Coarse flood guard per IP. Per-identity quotas live on the /admin group.
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	apiGroup := app.Group(cfg.App.BasePath)
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: cfg.BasicAuthUsers(),
		Next: func(c *fiber.Ctx) bool {
			// Allow CORS preflight without credentials.
			return c.Method() == fiber.MethodOptions
		},
	}))
	apiGroup.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	rest.InitRestAdmin(apiGroup, rest.Admin{
		Access:     enforcer,
		Trail:      trail,
		Cache:      cacheStore,
		Limiter:    quotaLimiter,
		Moderation: moderation,
		Bulk:       bulkEngine,
		Monitor:    generator,
		Analytics:  aggregator,
		Settings:   settingsSvc,
		Dispatcher: dispatcher,
		TTL:        cfg.Cache,
	})

	hub := websocket.NewHub(valkeyClient, uuid.NewString())
	websocket.RegisterRoutes(apiGroup, hub, enforcer)
	settingsSvc.OnChange(func(*settingsApp.DynamicSettings) {
		hub.Publish(websocket.Event{Code: websocket.EventSettingsUpdated, Message: "admin settings changed"})
	})
	// Another instance changed the overrides; reload them for our limiter.
	hub.OnRemote(websocket.EventSettingsUpdated, func(websocket.Event) {
		quotaLimiter.SetRules(quotaApp.RulesFrom(settingsSvc.QuotaConfig(context.Background())))
	})

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(utils.ResponseData{
			Status:  fiber.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "API endpoint not found: " + c.Path(),
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	go hub.Run(ctx)
	go streamAlerts(ctx, hub)
	if memoryCounter != nil {
		go sweepCounters(ctx)
	}

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		cancel()
		StopApp()
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}

// sweepCounters drops expired in-process quota windows until ctx ends.
func sweepCounters(ctx context.Context) {
	ticker := time.NewTicker(counterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memoryCounter.Sweep(); n > 0 {
				logrus.Debugf("[QUOTA] swept %d expired windows", n)
			}
		}
	}
}

// streamAlerts pushes fresh health alerts to attached dashboards. Alerts are
// per instance, so they are not shared over Valkey.
func streamAlerts(ctx context.Context, hub *websocket.Hub) {
	interval := cfg.Cache.AlertsTTL
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.Connected() == 0 {
				continue
			}
			alerts := generator.Generate(ctx)
			hub.PublishLocal(websocket.Event{
				Code:    websocket.EventHealthAlerts,
				Message: fmt.Sprintf("%d active alerts", len(alerts)),
				Result:  alerts,
			})
		}
	}
}
