package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Payment processor settings. The webhook secret is shared with the
	// provider and verifies event signatures over the raw request body.
	PaymentProvider      string
	PaymentWebhookSecret string
	PaymentCurrency      string

	// HomeCountry is the ISO code of the domestic shipping region.
	HomeCountry string

	// KafkaBrokers is a comma separated broker list; empty disables the
	// notification publisher and falls back to log-only delivery.
	KafkaBrokers      string
	NotificationTopic string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:             getEnvOrDefault("MONGO_URI", ""),
		DBName:               getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:            getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:       getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL:      getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		PaymentProvider:      getEnvOrDefault("PAYMENT_PROVIDER", "cardgate"),
		PaymentWebhookSecret: getEnvOrDefault("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentCurrency:      strings.ToLower(getEnvOrDefault("PAYMENT_CURRENCY", "usd")),
		HomeCountry:          strings.ToUpper(getEnvOrDefault("HOME_COUNTRY", "TR")),
		KafkaBrokers:         getEnvOrDefault("KAFKA_BROKERS", ""),
		NotificationTopic:    getEnvOrDefault("NOTIFICATION_TOPIC", "store.notifications"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
