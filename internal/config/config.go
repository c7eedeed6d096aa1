package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP      HTTPConfig
	Mongo     MongoConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Rabbit    RabbitConfig
	NATS      NATSConfig
	Events    EventsConfig
	Redis     RedisConfig
	Geocoder  GeocoderConfig
	Store     StoreConfig
	Fees      FeesConfig
	Media     MediaConfig
	Payment   PaymentConfig
	Worker    WorkerConfig
	Analytics AnalyticsConfig
	Telemetry TelemetryConfig
}

type HTTPConfig struct {
	Port string
}

type MongoConfig struct {
	URI string
	DB  string
}

// StorageConfig picks the order store: "mongo" or "memory".
// ProductSeed is a JSON file of products loaded into the memory catalog.
type StorageConfig struct {
	Driver      string
	ProductSeed string
}

type AuthConfig struct {
	URL string
}

// RabbitConfig enables the order_placed consumer when URL is set.
type RabbitConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

// EventsConfig picks where status events go: "rabbit", "nats" or "none".
type EventsConfig struct {
	Backend string
}

// RedisConfig enables the geocode cache when Addr is set.
type RedisConfig struct {
	Addr     string
	CacheTTL time.Duration
}

type GeocoderConfig struct {
	URL       string
	UserAgent string
}

// StoreConfig is the dispatch origin used for geocoded distances.
type StoreConfig struct {
	Lat float64
	Lon float64
}

// FeesConfig picks the checkout pricing: "geocoded" or "municipality".
type FeesConfig struct {
	Strategy string
}

type MediaConfig struct {
	CloudinaryURL string
	UploadPreset  string
	Folder        string
}

type PaymentConfig struct {
	URL       string
	SecretKey string
	Currency  string
}

type WorkerConfig struct {
	Interval      time.Duration
	Grace         time.Duration
	PendingWindow time.Duration
}

type AnalyticsConfig struct {
	Interval time.Duration
	Timezone string
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Environment  string
	LogLevel     string
	SampleRatio  float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var p parser
	cfg := &Config{
		HTTP: HTTPConfig{
			Port: getEnv("PORT", "8080"),
		},
		Mongo: MongoConfig{
			URI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DB:  getEnv("MONGO_DB_NAME", "kalyekart"),
		},
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "mongo"),
			ProductSeed: getEnv("PRODUCT_SEED_FILE", ""),
		},
		Auth: AuthConfig{
			URL: getEnv("AUTH_URL", "http://localhost:3000"),
		},
		Rabbit: RabbitConfig{
			URL: getEnv("RABBIT_URL", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", "none"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			CacheTTL: p.duration("GEOCODE_CACHE_TTL", 24*time.Hour),
		},
		Geocoder: GeocoderConfig{
			URL:       getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("GEOCODER_USER_AGENT", "kalyekart-order-service"),
		},
		Store: StoreConfig{
			Lat: p.float("STORE_LAT", 14.5995),
			Lon: p.float("STORE_LON", 120.9842),
		},
		Fees: FeesConfig{
			Strategy: getEnv("FEE_STRATEGY", "geocoded"),
		},
		Media: MediaConfig{
			CloudinaryURL: getEnv("CLOUDINARY_URL", ""),
			UploadPreset:  getEnv("MEDIA_UPLOAD_PRESET", ""),
			Folder:        getEnv("MEDIA_FOLDER", "refund-proof"),
		},
		Payment: PaymentConfig{
			URL:       getEnv("PAYMENT_URL", ""),
			SecretKey: getEnv("PAYMENT_SECRET_KEY", ""),
			Currency:  getEnv("PAYMENT_CURRENCY", "php"),
		},
		Worker: WorkerConfig{
			Interval:      p.duration("WORKER_INTERVAL", 10*time.Second),
			Grace:         p.duration("WORKER_GRACE", 10*time.Second),
			PendingWindow: p.duration("PENDING_WINDOW", 5*time.Minute),
		},
		Analytics: AnalyticsConfig{
			Interval: p.duration("ANALYTICS_INTERVAL", 5*time.Second),
			Timezone: getEnv("ANALYTICS_TIMEZONE", "Asia/Manila"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "kalyekart-order-service"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Environment:  getEnv("APP_ENV", "local"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			SampleRatio:  p.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	if err := p.err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.Storage.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("MONGO_URI is required")
		}
		if c.Mongo.DB == "" {
			return errors.New("MONGO_DB_NAME is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be mongo or memory, got %q", c.Storage.Driver)
	}
	switch c.Events.Backend {
	case "none":
	case "rabbit":
		if c.Rabbit.URL == "" {
			return errors.New("RABBIT_URL is required when EVENTS_BACKEND=rabbit")
		}
	case "nats":
		if c.NATS.URL == "" {
			return errors.New("NATS_URL is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be rabbit, nats or none, got %q", c.Events.Backend)
	}
	switch c.Fees.Strategy {
	case "geocoded", "municipality":
	default:
		return fmt.Errorf("FEE_STRATEGY must be geocoded or municipality, got %q", c.Fees.Strategy)
	}
	if c.Store.Lat < -90 || c.Store.Lat > 90 {
		return fmt.Errorf("STORE_LAT out of range: %v", c.Store.Lat)
	}
	if c.Store.Lon < -180 || c.Store.Lon > 180 {
		return fmt.Errorf("STORE_LON out of range: %v", c.Store.Lon)
	}
	if c.Worker.Interval <= 0 {
		return errors.New("WORKER_INTERVAL must be positive")
	}
	if c.Worker.Grace < 0 {
		return errors.New("WORKER_GRACE must not be negative")
	}
	if c.Worker.PendingWindow <= 0 {
		return errors.New("PENDING_WINDOW must be positive")
	}
	if c.Analytics.Interval <= 0 {
		return errors.New("ANALYTICS_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("ANALYTICS_TIMEZONE: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// parser collects conversion errors so Load reports every bad variable at once.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (p *parser) float(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}
