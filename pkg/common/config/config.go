package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	AdminAPIToken  string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// AI text service (OpenAI-compatible)
	AIAPIKey      string
	AIBaseURL     string
	AIModelName   string
	AITemperature float64

	// Marketplace scraping
	MarketplaceBaseURL string
	ScrapeUserAgent    string
	ScrapeTimeout      time.Duration
	SearchCacheTTL     time.Duration
	ProductCacheTTL    time.Duration
	ReviewCacheTTL     time.Duration

	// Affiliate
	AmazonTrackingTag string

	// Object storage mirror
	MediaBucket        string
	MediaPublicBaseURL string
	MediaKeyPrefix     string
	MaxImageBytes      int64

	// Pipeline
	PublishMode       string
	RequireAI         bool
	RecentTitleWindow time.Duration
	ClickWindowDays   int

	// Taxonomy
	TaxonomyPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		AdminAPIToken:  getEnv("ADMIN_API_TOKEN", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "smartreview"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "smartreview123"),
		PostgresDB:       getEnv("POSTGRES_DB", "smartreview"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "smartreview-platform"),

		AIAPIKey:      getEnv("AI_API_KEY", ""),
		AIBaseURL:     getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModelName:   getEnv("AI_MODEL_NAME", "gpt-4.1-mini"),
		AITemperature: getFloatEnv("AI_TEMPERATURE", 0.35),

		MarketplaceBaseURL: getEnv("MARKETPLACE_BASE_URL", "https://www.amazon.com"),
		ScrapeUserAgent: getEnv("SCRAPE_USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"),
		ScrapeTimeout:   getDuration("SCRAPE_TIMEOUT", 30*time.Second),
		SearchCacheTTL:  getDuration("SEARCH_CACHE_TTL", 7*24*time.Hour),
		ProductCacheTTL: getDuration("PRODUCT_CACHE_TTL", 14*24*time.Hour),
		ReviewCacheTTL:  getDuration("REVIEW_CACHE_TTL", 30*24*time.Hour),

		AmazonTrackingTag: getEnv("AMAZON_TRACKING_TAG", ""),

		MediaBucket:        getEnv("MEDIA_BUCKET", ""),
		MediaPublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", ""),
		MediaKeyPrefix:     getEnv("MEDIA_KEY_PREFIX", "uploads/auto"),
		MaxImageBytes:      int64(getIntEnv("MAX_IMAGE_BYTES", 8*1024*1024)),

		PublishMode:       getEnv("PUBLISH_MODE", "DRAFT"),
		RequireAI:         getBoolEnv("REQUIRE_AI", false),
		RecentTitleWindow: getDuration("RECENT_TITLE_WINDOW", 7*24*time.Hour),
		ClickWindowDays:   getIntEnv("CLICK_WINDOW_DAYS", 30),

		TaxonomyPath: getEnv("TAXONOMY_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
