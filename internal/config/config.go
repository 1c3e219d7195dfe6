package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations accept Go duration strings ("10m").
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	DBAutoMigrate bool // create tables from schema.sql on start

	JWTSecret string // secret used to verify bearer tokens

	WebhookSecret          string // pre-shared value the payment system sends back
	WebhookSignatureHeader string // header carrying WebhookSecret

	LockTTL           time.Duration // how long a reservation holds its tickets
	LockSweepInterval time.Duration // 0 disables the expired-lock purge
	PaymentClaimTTL   time.Duration // window during which a second payment start is refused

	PaymentGatewayURL     string        // endpoint that starts a payment
	PaymentGatewayTimeout time.Duration // per-call timeout for the gateway
	PublicBaseURL         string        // externally reachable base URL of this service

	RabbitMQURL            string // empty disables queue publishing
	BookingConsumerEnabled bool   // run the booking.confirmed consumer in-process
	BookingLogPath         string // file the consumer appends events to

	PubNubPublishKey   string // empty disables realtime pushes
	PubNubSubscribeKey string
	PubNubUserID       string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),      // environment (dev/test/prod)
		Port:   must("APP_PORT"),     // port to bind the HTTP server
		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		DBAutoMigrate: envBool("DB_AUTO_MIGRATE", false),

		JWTSecret: must("JWT_SECRET"),

		WebhookSecret:          must("WEBHOOK_SECRET"),
		WebhookSignatureHeader: envStr("WEBHOOK_SIGNATURE_HEADER", "X-Stripe-Signature"),

		LockTTL:           mustPositive("LOCK_TTL", envDur("LOCK_TTL", 10*time.Minute)),
		LockSweepInterval: envDur("LOCK_SWEEP_INTERVAL", time.Minute),
		PaymentClaimTTL:   envDur("PAYMENT_CLAIM_TTL", 30*time.Second),

		PaymentGatewayURL:     must("PAYMENT_GATEWAY_URL"),
		PaymentGatewayTimeout: envDur("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		PublicBaseURL:         strings.TrimRight(must("PUBLIC_BASE_URL"), "/"),

		RabbitMQURL:            os.Getenv("RABBITMQ_URL"),
		BookingConsumerEnabled: envBool("BOOKING_CONSUMER_ENABLED", false),
		BookingLogPath:         envStr("BOOKING_LOG_PATH", "logs/booking.log"),

		PubNubPublishKey:   os.Getenv("PUBNUB_PUBLISH_KEY"),
		PubNubSubscribeKey: os.Getenv("PUBNUB_SUBSCRIBE_KEY"),
		PubNubUserID:       envStr("PUBNUB_USER_ID", "booking-service"),
	}
}

// WebhookURL is the callback address handed to the payment gateway.
func (c Config) WebhookURL() string {
	return c.PublicBaseURL + "/bookings/webhook"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustPositive halts when a duration that must be set is zero or negative.
func mustPositive(key string, d time.Duration) time.Duration {
	if d <= 0 {
		log.Fatalf("%s must be positive, got %s", key, d)
	}
	return d
}
