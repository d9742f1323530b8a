package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverDynamo   = "dynamodb"
)

// DynamoDB connection modes.
const (
	DynamoModeLocal = "local"
	DynamoModeAWS   = "aws"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Realtime     RealtimeConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Dynamo       DynamoConfig
	Store        StoreConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Handoff      HandoffConfig
	AI           AIConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RealtimeConfig controls the websocket listener.
type RealtimeConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
	PongWait       time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	PoolSize           int
	DialTimeoutSeconds int
}

// DynamoConfig locates the single table used by the dynamodb store driver.
// Local mode talks to DynamoDB Local with static credentials and creates the
// table on startup.
type DynamoConfig struct {
	Mode     string
	Endpoint string
	Region   string
	Table    string
}

// StoreConfig selects the backing store for hand-off state.
type StoreConfig struct {
	Driver    string
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is json or console.
	Format  string
	Service string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	BcryptCost             int
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
}

// HandoffConfig tunes escalation and routing.
type HandoffConfig struct {
	DefaultMaxChats       int
	QueueBroadcastSeconds int
	EscalationKeywords    []string
	EscalateOnAITimeout   bool
	MinAIConfidence       float64
	HistoryWindow         int
	ApologyMessage        string
	StaffJoinedMessage    string
	QueuedMessage         string
}

// AIConfig points at the AI and knowledge-base collaborators.
type AIConfig struct {
	Endpoint                string
	TimeoutSeconds          int
	KnowledgeEndpoint       string
	KnowledgeTimeoutSeconds int
	KnowledgeCacheSeconds   int
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
	WebhookURL   string
	RedisChannel string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory))
	switch driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres, StoreDriverDynamo:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", driver)
	}

	minConfidence, err := strconv.ParseFloat(getEnv("HANDOFF_MIN_AI_CONFIDENCE", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HANDOFF_MIN_AI_CONFIDENCE: %w", err)
	}

	pongWait := time.Duration(getEnvAsInt("WS_READ_TIMEOUT", 60)) * time.Second

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chat-handoff"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Realtime: RealtimeConfig{
			Host:           getEnv("REALTIME_HOST", "0.0.0.0"),
			Port:           getEnv("REALTIME_PORT", "8081"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", "*"),
			PongWait:       pongWait,
			PingPeriod:     (pongWait * 9) / 10,
			WriteWait:      time.Duration(getEnvAsInt("WS_WRITE_TIMEOUT", 10)) * time.Second,
			MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
			SendBuffer:     getEnvAsInt("WS_SEND_BUFFER", 256),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			PoolSize:           getEnvAsInt("REDIS_POOL_SIZE", 0),
			DialTimeoutSeconds: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 3),
		},
		Dynamo: DynamoConfig{
			Mode:     strings.ToLower(getEnv("DYNAMO_MODE", DynamoModeAWS)),
			Endpoint: getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:   getEnv("DYNAMO_REGION", "eu-central-1"),
			Table:    getEnv("DYNAMO_TABLE", "chat-handoff"),
		},
		Store: StoreConfig{
			Driver:    driver,
			KeyPrefix: getEnv("STORE_KEY_PREFIX", "handoff"),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Service: getEnv("APP_NAME", "chat-handoff"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
			BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		},
		Handoff: HandoffConfig{
			DefaultMaxChats:       getEnvAsInt("HANDOFF_DEFAULT_MAX_CHATS", 3),
			QueueBroadcastSeconds: getEnvAsInt("HANDOFF_QUEUE_BROADCAST_SECONDS", 10),
			EscalationKeywords:    getEnvAsList("HANDOFF_ESCALATION_KEYWORDS", "human,real person,live agent,representative"),
			EscalateOnAITimeout:   getEnvAsBool("HANDOFF_ESCALATE_ON_AI_TIMEOUT", false),
			MinAIConfidence:       minConfidence,
			HistoryWindow:         getEnvAsInt("HANDOFF_HISTORY_WINDOW", 10),
			ApologyMessage: getEnv("HANDOFF_APOLOGY_MESSAGE",
				"Sorry, I'm having trouble answering right now. Please try again in a moment or ask for a human agent."),
			StaffJoinedMessage: getEnv("HANDOFF_STAFF_JOINED_MESSAGE", "An agent has joined the conversation."),
			QueuedMessage: getEnv("HANDOFF_QUEUED_MESSAGE",
				"You've been added to the queue. An agent will be with you shortly."),
		},
		AI: AIConfig{
			Endpoint:                os.Getenv("AI_ENDPOINT"),
			TimeoutSeconds:          getEnvAsInt("AI_TIMEOUT_SECONDS", 20),
			KnowledgeEndpoint:       os.Getenv("KNOWLEDGE_ENDPOINT"),
			KnowledgeTimeoutSeconds: getEnvAsInt("KNOWLEDGE_TIMEOUT_SECONDS", 5),
			KnowledgeCacheSeconds:   getEnvAsInt("KNOWLEDGE_CACHE_SECONDS", 300),
		},
		Notification: NotificationConfig{
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			RedisChannel: getEnv("EVENTS_REDIS_CHANNEL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the websocket bind address.
func (r RealtimeConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// QueueBroadcastInterval returns the periodic queue_updated interval, zero when disabled.
func (h HandoffConfig) QueueBroadcastInterval() time.Duration {
	if h.QueueBroadcastSeconds <= 0 {
		return 0
	}
	return time.Duration(h.QueueBroadcastSeconds) * time.Second
}

// Timeout bounds a single AI call.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// KnowledgeTimeout bounds a knowledge-base lookup.
func (a AIConfig) KnowledgeTimeout() time.Duration {
	if a.KnowledgeTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.KnowledgeTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
