package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
)

// Order store backends.
const (
	StoreFile     = "file"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Event bus backends.
const (
	BusNone  = "none"
	BusSNS   = "sns"
	BusKafka = "kafka"
)

const stripeSecretName = "checkout/STRIPE"

// Config holds all configuration for the checkout service.
type Config struct {
	Port       string
	AppEnv     string
	ClientURLs []string

	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string

	OrderStore  string
	OrdersFile  string
	MongoURL    string
	MongoDB     string
	DynamoTable string
	Postgres    PostgresConfig

	RedisURL        string
	WebhookEventTTL time.Duration

	EventBus         string
	OrderSNSTopicARN string
	KafkaBrokers     []string
	KafkaOrderTopic  string

	SimulatedCompletionDelay time.Duration
	RateLimitPerMinute       int

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	UseSecretsManager   bool
}

type PostgresConfig struct {
	User     string
	Password string
	DB       string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

// DSN renders the connection string understood by gorm's postgres driver.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode, p.TimeZone)
}

// ClientURL is the primary storefront origin, used for redirect URLs.
func (c *Config) ClientURL() string {
	if len(c.ClientURLs) == 0 {
		return ""
	}
	return c.ClientURLs[0]
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LoadConfig reads .env (if present) and the environment, applies the
// Secrets Manager override when AWS_USE_SECRETS=true, and validates.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecretsManager {
		if err := cfg.overrideFromSecrets(context.Background()); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "4100"),
		AppEnv:              getEnv("APP_ENV", "development"),
		ClientURLs:          splitList(getEnv("CLIENT_URL", "http://localhost:4200")),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		OrderStore:          strings.ToLower(getEnv("ORDER_STORE", StoreFile)),
		OrdersFile:          getEnv("ORDERS_FILE", "data/orders.json"),
		MongoURL:            os.Getenv("MONGO_URL"),
		MongoDB:             getEnv("MONGO_DB", "checkout"),
		DynamoTable:         getEnv("DYNAMODB_ORDERS_TABLE", "orders"),
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:            os.Getenv("REDIS_URL"),
		EventBus:            strings.ToLower(getEnv("EVENT_BUS", BusNone)),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic:     getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Checkout"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/checkout/services"),
		UseSecretsManager:   os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.WebhookEventTTL, err = getDuration("WEBHOOK_EVENT_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SimulatedCompletionDelay, err = getDuration("SIMULATED_COMPLETION_DELAY", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}

	cfg.SuccessURL = getEnv("SUCCESS_URL", cfg.ClientURL()+"/thank-you?session_id={CHECKOUT_SESSION_ID}")
	cfg.CancelURL = getEnv("CANCEL_URL", cfg.ClientURL()+"/cancel")
	return cfg, nil
}

// overrideFromSecrets replaces the Stripe keys with the values stored in
// Secrets Manager under checkout/STRIPE.
func (c *Config) overrideFromSecrets(ctx context.Context) error {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	values, err := aws_pkg.NewSecretsClient(awsCfg).GetSecretJSON(ctx, stripeSecretName)
	if err != nil {
		return err
	}
	if v := values["STRIPE_SECRET_KEY"]; v != "" {
		c.StripeSecretKey = v
	}
	if v := values["STRIPE_WEBHOOK_SECRET"]; v != "" {
		c.StripeWebhookSecret = v
	}
	return nil
}

// Validate checks the settings required by the selected backends.
func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY not set")
	}
	if len(c.ClientURLs) == 0 {
		return fmt.Errorf("CLIENT_URL not set")
	}
	for _, origin := range c.ClientURLs {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}

	switch c.OrderStore {
	case StoreFile:
		if c.OrdersFile == "" {
			return fmt.Errorf("ORDERS_FILE not set")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL not set")
		}
	case StorePostgres:
		if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DB == "" {
			return fmt.Errorf("database config incomplete")
		}
	case StoreDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("DYNAMODB_ORDERS_TABLE not set")
		}
	default:
		return fmt.Errorf("unknown ORDER_STORE %q", c.OrderStore)
	}

	switch c.EventBus {
	case BusNone:
	case BusSNS:
		if c.OrderSNSTopicARN == "" {
			return fmt.Errorf("ORDER_SNS_TOPIC_ARN not set")
		}
	case BusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS not set")
		}
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	return nil
}

// validateOrigin requires an absolute http(s) origin, as the CORS middleware does.
func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid CLIENT_URL %q: must be an http:// or https:// origin", origin)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma separated list, trimming blanks and trailing slashes.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSuffix(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
