package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// GoHighLevel CRM access
	GHLBaseURL       string
	GHLAPIKey        string
	GHLWebhookSecret string

	// Bot activation
	SellerEnabled    bool
	BuyerEnabled     bool
	LeadEnabled      bool
	BuyerTag         string
	LeadTag          string
	DeactivationTags []string

	// Workflow ids; an empty id disables that automation entirely
	WorkflowHotLeadID           string
	WorkflowNegativeSentimentID string
	WorkflowRejectedOfferID     string
	WorkflowUnstaleLeadID       string
	WorkflowNewLeadID           string

	WorkflowDedupTTL time.Duration
	GhostStateTTL    time.Duration
	ContextTTL       time.Duration
	CacheAtomicDedup bool

	// Canonical custom-field mapping (preference key -> GHL field id)
	CanonicalFieldMapJSON string
	CanonicalMappingMode  string // fail_open | fail_closed

	// Outbound voice (Vapi)
	VapiBaseURL         string
	VapiAPIKey          string
	VapiAssistantID     string
	VoiceRetryAttempts  int
	VoiceRetryBaseDelay time.Duration

	// Deferred dispatch queue
	UseMemoryQueue   bool
	DispatchQueueURL string
	WorkerCount      int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Carried for external follow-up schedulers; the router never
	// enforces quiet hours itself.
	QuietHoursStart    string
	QuietHoursEnd      string
	QuietHoursTimezone string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GHLBaseURL:       getEnv("GHL_BASE_URL", "https://services.leadconnectorhq.com"),
		GHLAPIKey:        getEnv("GHL_API_KEY", ""),
		GHLWebhookSecret: getEnv("GHL_WEBHOOK_SECRET", ""),

		SellerEnabled:    getEnvAsBool("SELLER_BOT_ENABLED", true),
		BuyerEnabled:     getEnvAsBool("BUYER_BOT_ENABLED", false),
		LeadEnabled:      getEnvAsBool("LEAD_BOT_ENABLED", false),
		BuyerTag:         getEnv("BUYER_ACTIVATION_TAG", "Buyer-Lead"),
		LeadTag:          getEnv("LEAD_ACTIVATION_TAG", "Lead-Nurture"),
		DeactivationTags: getEnvAsList("DEACTIVATION_TAGS", []string{"AI-Off", "Qualified", "Stop-Bot"}),

		WorkflowHotLeadID:           getEnv("WORKFLOW_HOT_LEAD_ID", ""),
		WorkflowNegativeSentimentID: getEnv("WORKFLOW_NEGATIVE_SENTIMENT_ID", ""),
		WorkflowRejectedOfferID:     getEnv("WORKFLOW_REJECTED_OFFER_ID", ""),
		WorkflowUnstaleLeadID:       getEnv("WORKFLOW_UNSTALE_LEAD_ID", ""),
		WorkflowNewLeadID:           getEnv("WORKFLOW_NEW_LEAD_ID", ""),

		WorkflowDedupTTL: getEnvAsDuration("WORKFLOW_DEDUP_TTL", 30*24*time.Hour),
		GhostStateTTL:    getEnvAsDuration("GHOST_STATE_TTL", 30*24*time.Hour),
		ContextTTL:       getEnvAsDuration("CONTEXT_TTL", 90*24*time.Hour),
		CacheAtomicDedup: getEnvAsBool("CACHE_ATOMIC_DEDUP", false),

		CanonicalFieldMapJSON: getEnv("CANONICAL_FIELD_MAP_JSON", ""),
		CanonicalMappingMode:  strings.ToLower(strings.TrimSpace(getEnv("CANONICAL_MAPPING_MODE", "fail_open"))),

		VapiBaseURL:         getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiAPIKey:          getEnv("VAPI_API_KEY", ""),
		VapiAssistantID:     getEnv("VAPI_ASSISTANT_ID", ""),
		VoiceRetryAttempts:  getEnvAsInt("VOICE_RETRY_ATTEMPTS", 3),
		VoiceRetryBaseDelay: getEnvAsDuration("VOICE_RETRY_BASE_DELAY", time.Second),

		UseMemoryQueue:   getEnvAsBool("USE_MEMORY_QUEUE", false),
		DispatchQueueURL: getEnv("DISPATCH_QUEUE_URL", ""),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		QuietHoursStart:    getEnv("QUIET_HOURS_START", ""),
		QuietHoursEnd:      getEnv("QUIET_HOURS_END", ""),
		QuietHoursTimezone: getEnv("QUIET_HOURS_TZ", "UTC"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList parses a comma-separated environment variable, trimming
// whitespace around each element.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
