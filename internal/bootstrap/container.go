package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"ai-mediagen-be/internal/config"
	"ai-mediagen-be/internal/controller"
	"ai-mediagen-be/internal/handler"
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/pkg/mailer"
	"ai-mediagen-be/internal/repository/cache"
	"ai-mediagen-be/internal/repository/memory"
	"ai-mediagen-be/internal/repository/unitofwork"
	"ai-mediagen-be/internal/scheduler"
	"ai-mediagen-be/internal/service"
	"ai-mediagen-be/internal/websocket"
	"ai-mediagen-be/pkg/events"
	"ai-mediagen-be/pkg/polling"
	"ai-mediagen-be/pkg/provider"
	"ai-mediagen-be/pkg/provider/flux"
	"ai-mediagen-be/pkg/provider/gemini"
	"ai-mediagen-be/pkg/provider/midjourney"
	"ai-mediagen-be/pkg/provider/runway"
	"ai-mediagen-be/pkg/provider/simulated"
	"ai-mediagen-be/pkg/storage"

	pktNats "ai-mediagen-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	GenerationController  controller.IGenerationController
	CreditController      controller.ICreditController
	AdminCreditController controller.IAdminCreditController
	ImageController       controller.IImageController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	CreditScheduler *scheduler.CreditScheduler

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// Close releases broker and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	ctx := context.Background()
	c := &Container{}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	c.Logger = sysLogger

	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			fmt.Sprintf("%s <%s>", cfg.SMTP.SenderName, cfg.SMTP.Email),
			cfg.App.ClientURL,
			sysLogger,
		)
	} else {
		log.Printf("[WARN] SMTP_HOST not set, failure emails are disabled")
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	bus := events.NewBus(pubSub, "")
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS
	var forwarder events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		forwarder = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}

	// Redis backs poll task state and the cross-instance websocket relay.
	// Without it both fall back to process-local state.
	var taskStore polling.TaskStore
	rdb := connectRedis(ctx, cfg.App.RedisURL)
	if rdb != nil {
		taskStore = cache.NewPollTaskRepository(rdb, cache.DefaultPollTaskTTL)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	} else {
		taskStore = memory.NewPollTaskRepository(cache.DefaultPollTaskTTL)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	backend, err := newStorageBackend(ctx, cfg.Storage, cfg.App.BaseURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize storage backend: %v", err)
	}
	storageService := storage.NewService(backend, storage.NewFetcher(nil), sysLogger, cfg.Storage.ThumbnailSize).
		WithVideoImportDir(cfg.Storage.VideoImportDir)
	log.Printf("[INFO] Using Storage Backend: %s", backend.Name())

	// 4. Providers
	registry := provider.NewRegistry()
	registerProviders(ctx, cfg, registry)
	if len(registry.Models()) == 0 {
		log.Printf("[WARN] No generation models available, configure provider keys or PROVIDER_SIMULATION")
	}

	engine := polling.NewEngine(polling.Config{
		MaxAttempts:  cfg.Generation.PollMaxAttempts,
		BaseInterval: cfg.Generation.PollInterval,
	}, taskStore, sysLogger)

	// 5. Services
	creditService := service.NewCreditService(uowFactory, registry, bus, sysLogger, service.CreditOptions{
		DailyAllotment: cfg.Credits.DailyAllotment,
		HistoryLimit:   cfg.Credits.HistoryLimit,
	})
	generationService := service.NewGenerationService(
		uowFactory,
		creditService,
		registry,
		engine,
		taskStore,
		storageService,
		bus,
		sysLogger,
		service.GenerationOptions{
			PersistRequiredTiers: cfg.Generation.PersistRequiredTiers,
			StaleAfter:           cfg.Generation.StaleAfter,
		},
	)
	imageService := service.NewImageService(uowFactory, storageService, sysLogger)
	consumerService := service.NewConsumerService(bus, uowFactory, wsHub, forwarder, emailService, wsLogger)

	creditScheduler, err := scheduler.New(creditService, generationService, sysLogger, scheduler.Options{
		Enabled:    cfg.Scheduler.Enabled,
		DailySpec:  cfg.Scheduler.DailySpec,
		SweepSpec:  cfg.Scheduler.SweepSpec,
		StaleAfter: cfg.Generation.StaleAfter,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to configure credit scheduler: %v", err)
	}

	// 6. Controllers
	c.GenerationController = controller.NewGenerationController(generationService)
	c.CreditController = controller.NewCreditController(creditService)
	c.AdminCreditController = controller.NewAdminCreditController(creditService, creditScheduler)
	c.ImageController = controller.NewImageController(imageService)
	c.NotificationHandler = handler.NewNotificationHandler(wsHub, wsLogger)
	c.WebSocketHub = wsHub
	c.ConsumerService = consumerService
	c.CreditScheduler = creditScheduler

	return c
}

// connectRedis returns nil when Redis is unreachable.
func connectRedis(ctx context.Context, url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Poll tasks stay in memory", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newStorageBackend(ctx context.Context, cfg config.StorageConfig, baseURL string) (storage.Backend, error) {
	switch cfg.Backend {
	case "gcs":
		return storage.NewGCSBackend(ctx, cfg.GCSBucket, cfg.CDNFolder, cfg.GCSCredsFile)
	case "cdn":
		return storage.NewCDNBackend(cfg.CDNUploadURL, cfg.CDNAPIKey, cfg.CDNFolder, &http.Client{Timeout: 60 * time.Second})
	case "local", "":
		return storage.NewLocalBackend(cfg.LocalDir, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// registerProviders wires every provider with credentials, then the catalog models
// those providers serve.
func registerProviders(ctx context.Context, cfg *config.Config, registry *provider.Registry) {
	if cfg.Keys.GoogleGemini != "" {
		p, err := gemini.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Keys.GeminiModel)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Gemini provider: %v", err)
		} else {
			registry.Register(p)
		}
	}
	if cfg.Keys.BFL != "" {
		registry.Register(flux.NewFluxProvider(cfg.Keys.BFLBaseURL, cfg.Keys.BFL))
	}
	if cfg.Keys.KieAI != "" {
		registry.Register(runway.NewRunwayProvider(cfg.Keys.RunwayURL, cfg.Keys.KieAI, cfg.Keys.CallbackURL))
		registry.Register(midjourney.NewMidjourneyProvider(cfg.Keys.MidjourneyURL, cfg.Keys.KieAI))
	}

	for _, spec := range provider.DefaultCatalog() {
		if err := registry.RegisterModel(spec); err != nil {
			continue
		}
		log.Printf("[INFO] Model available: %s (%s, %d credits)", spec.ID, spec.Provider, spec.Credits)
	}

	if !cfg.Generation.Simulation {
		return
	}
	if cfg.App.IsProduction() {
		log.Printf("[WARN] PROVIDER_SIMULATION ignored in production")
		return
	}
	registry.Register(simulated.NewSimulatedProvider(cfg.Generation.SimulationDuration, simulated.DefaultSampleURL))
	if err := registry.RegisterModel(provider.SimulatedModel()); err != nil {
		log.Printf("[WARN] Failed to register simulated model: %v", err)
		return
	}
	log.Printf("[INFO] Provider simulation enabled (%s)", cfg.Generation.SimulationDuration)
}
