package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kalyekart-order-service/internal/analytics"
	"kalyekart-order-service/internal/cache"
	"kalyekart-order-service/internal/config"
	"kalyekart-order-service/internal/controller"
	"kalyekart-order-service/internal/geo"
	"kalyekart-order-service/internal/media"
	"kalyekart-order-service/internal/middleware"
	"kalyekart-order-service/internal/nats"
	"kalyekart-order-service/internal/payment"
	"kalyekart-order-service/internal/rabbit"
	"kalyekart-order-service/internal/repository"
	"kalyekart-order-service/internal/service"
	"kalyekart-order-service/internal/telemetry"
	"kalyekart-order-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order service exited", "error", err)
		os.Exit(1)
	}
}

type orderStore interface {
	service.OrderRepository
	analytics.OrderStats
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.Telemetry.ServiceName, cfg.Telemetry.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Storage
	var (
		store    orderStore
		catalog  analytics.CatalogCounter
		products service.ProductCatalog
	)
	switch cfg.Storage.Driver {
	case "memory":
		store = repository.NewMemoryOrderRepository()
		memProducts := repository.NewMemoryProductCatalog()
		if cfg.Storage.ProductSeed != "" {
			if err := memProducts.LoadProducts(cfg.Storage.ProductSeed); err != nil {
				return err
			}
		}
		n, _ := memProducts.CountProducts(ctx)
		catalog = repository.StaticCatalog{Products: n}
		products = memProducts
		slog.Warn("using in-memory order storage", "products", n)
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("mongo disconnect failed", "error", err)
			}
		}()

		db := client.Database(cfg.Mongo.DB)
		mongoRepo := repository.NewMongoOrderRepository(db)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			return err
		}
		store = mongoRepo
		mongoCatalog := repository.NewMongoCatalog(db)
		catalog = mongoCatalog
		products = mongoCatalog
		slog.Info("connected to mongo", "db", cfg.Mongo.DB)
	}

	// Delivery fees
	var geocoder geo.Geocoder = geo.NewNominatimClient(cfg.Geocoder.URL, cfg.Geocoder.UserAgent)
	if cfg.Fees.Strategy == geo.StrategyGeocoded && cfg.Redis.Addr != "" {
		redisCache := cache.NewRedis(cfg.Redis.Addr, cfg.Telemetry.ServiceName)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, geocode cache may miss", "addr", cfg.Redis.Addr, "error", err)
		}
		geocoder = geo.NewCachedGeocoder(geocoder, redisCache, cfg.Redis.CacheTTL)
	}
	fees, err := geo.NewCheckoutStrategy(cfg.Fees.Strategy, geocoder, geo.Point{Lat: cfg.Store.Lat, Lon: cfg.Store.Lon})
	if err != nil {
		return err
	}
	estimator := geo.NewEstimateStrategy()

	// External services
	var uploader media.Uploader
	if cfg.Media.CloudinaryURL != "" {
		cld, err := media.NewCloudinaryClient(cfg.Media.CloudinaryURL, cfg.Media.UploadPreset, media.WithFolder(cfg.Media.Folder))
		if err != nil {
			return err
		}
		uploader = cld
	}
	var payments payment.Gateway
	if cfg.Payment.SecretKey != "" {
		payments = payment.NewStripeClient(cfg.Payment.URL, cfg.Payment.SecretKey, cfg.Payment.Currency)
	}

	// Messaging
	var amqpConn *amqp091.Connection
	if cfg.Rabbit.URL != "" {
		amqpConn, err = amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return err
		}
		defer amqpConn.Close()
	}

	var events service.EventPublisher
	switch cfg.Events.Backend {
	case "rabbit":
		ch, err := amqpConn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		pub, err := rabbit.NewStatusPublisher(ch)
		if err != nil {
			return err
		}
		events = pub
	case "nats":
		pub, err := nats.NewPublisher(ctx, cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
	}

	orderService := service.NewOrderService(service.Dependencies{
		Repo:          store,
		Catalog:       products,
		Fees:          fees,
		Uploader:      uploader,
		Payments:      payments,
		Events:        events,
		PendingWindow: cfg.Worker.PendingWindow,
		AdvanceGrace:  cfg.Worker.Grace,
	})

	if amqpConn != nil {
		ch, err := amqpConn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		if err := rabbit.SetupConsumers(ctx, ch, rabbit.NewPlaceOrderConsumer(orderService)); err != nil {
			return err
		}
	}

	// Background tasks
	statusWorker := worker.NewStatusWorker(orderService, cfg.Worker.Interval)
	statusWorker.Start(ctx)
	defer statusWorker.Stop()

	loc, err := time.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		return err
	}
	aggregator := analytics.NewAggregator(store, catalog, loc)

	// HTTP
	authService := service.NewAuthService(cfg.Auth.URL)
	r := gin.New()
	r.Use(gin.Recovery())
	controller.RegisterRoutes(r, middleware.AuthMiddleware(authService), controller.Handlers{
		Orders:    controller.NewOrderController(orderService),
		Estimates: &controller.EstimateController{Strategy: estimator},
		Analytics: &controller.AnalyticsController{Aggregator: aggregator, Interval: cfg.Analytics.Interval},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("order service listening", "port", cfg.HTTP.Port, "fee_strategy", fees.Name(), "events", cfg.Events.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	statusWorker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
