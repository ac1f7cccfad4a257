package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	Env         string
	LogLevel    string
	BaseURL     string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers      []string
	NotificationTopic string

	JWTAccessSecret []byte

	// Payment gateway. Absence disables card checkout; absence of the
	// webhook secret makes the webhook endpoint reject every delivery.
	GatewayURL           string
	GatewaySecretKey     string
	WebhookSigningSecret string

	EmailAPIURL     string
	EmailAPIKey     string
	EmailFrom       string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	RateLimitPerMinute int
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("notice: no .env file, using process environment")
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		Env:         EnvDefault("ENV", "development"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),
		BaseURL:     EnvDefault("BASE_URL", "http://localhost:8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers:      CSV(os.Getenv("KAFKA_BROKERS")),
		NotificationTopic: EnvDefault("KAFKA_TOPIC_NOTIFICATIONS", "notification_events"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		GatewayURL:           EnvDefault("GATEWAY_URL", "https://api.checkout.example.com"),
		GatewaySecretKey:     os.Getenv("GATEWAY_SECRET_KEY"),
		WebhookSigningSecret: os.Getenv("WEBHOOK_SIGNING_SECRET"),

		EmailAPIURL:     EnvDefault("EMAIL_API_URL", "https://api.mailprovider.example.com/v1/send"),
		EmailAPIKey:     os.Getenv("EMAIL_API_KEY"),
		EmailFrom:       EnvDefault("EMAIL_FROM", "no-reply@storefront.local"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		PushSubscriber:  EnvDefault("PUSH_SUBSCRIBER", "mailto:ops@storefront.local"),

		RateLimitPerMinute: EnvIntDefault("RATE_LIMIT_PER_MINUTE", 60),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
