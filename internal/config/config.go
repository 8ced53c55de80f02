// Package config manages application configuration from config.yaml,
// AMY_-prefixed environment variables, and in-code defaults.
package config

// Config defines the application configuration. Values can be set via
// environment variables prefixed with AMY_ (e.g. AMY_TELEGRAM_TOKEN) or
// through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelegramConfig holds the transport settings and user-visible messages.
type TelegramConfig struct {
	Token   string           `mapstructure:"token"    validate:"required"`
	AdminID int64            `mapstructure:"admin_id" validate:"required,gt=0"`
	Msgs    TelegramMessages `mapstructure:"messages"`
}

// TelegramMessages are the canned responses sent by command handlers.
type TelegramMessages struct {
	GreetingNewUser       string `mapstructure:"greeting_new_user"       validate:"required"`
	GreetingReturningUser string `mapstructure:"greeting_returning_user" validate:"required"`
	NotAuthorized         string `mapstructure:"not_authorized"          validate:"required"`
	GeneralError          string `mapstructure:"general_error"           validate:"required"`
	MemoryReset           string `mapstructure:"memory_reset"            validate:"required"`
	SessionForgotten      string `mapstructure:"session_forgotten"       validate:"required"`
}

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"             validate:"required"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"  validate:"required"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`
}

// DatabaseConfig configures the SQLite backing store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// MemoryConfig holds the tunables of the memory core. The similarity
// threshold and minimum relevance are deliberately configuration, not
// constants: the intended behavior is "near-duplicate collapsing" and
// "irrelevant-fact exclusion", not a particular number.
type MemoryConfig struct {
	BufferCapacity      int     `mapstructure:"buffer_capacity"      validate:"min=1,max=1000"`
	ContextMaxChars     int     `mapstructure:"context_max_chars"    validate:"min=50,max=100000"`
	ContextRecentTurns  int     `mapstructure:"context_recent_turns" validate:"min=1,max=20"`
	ContextFactLimit    int     `mapstructure:"context_fact_limit"   validate:"min=1,max=50"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
	MinRelevance        float64 `mapstructure:"min_relevance"        validate:"min=0"`
	Extractor           string  `mapstructure:"extractor"            validate:"oneof=rules gemini"`
}

// SchedulerConfig configures scheduled background tasks, keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a named task and sets its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Default values for optional configuration parameters.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultDBPath = "amy.db"

	DefaultGeminiModel             = "gemini-2.0-flash"
	DefaultGeminiTemperature       = 1.0
	DefaultGeminiMaxRetries        = 2
	DefaultGeminiRetryDelaySeconds = 5

	DefaultBufferCapacity      = 20
	DefaultContextMaxChars     = 500
	DefaultContextRecentTurns  = 3
	DefaultContextFactLimit    = 3
	DefaultSimilarityThreshold = 0.8
	DefaultMinRelevance        = 30
	DefaultExtractor           = "rules"

	DefaultGeminiInstruction = "You are Amy, a warm and helpful personal assistant. " +
		"Use the provided conversation context when it is relevant, and answer concisely."
)

// Default user-visible messages.
var defaultMessages = TelegramMessages{
	GreetingNewUser:       "Hi! I'm Amy, your AI assistant. How can I help you today?",
	GreetingReturningUser: "Hi again! How can I help you today?",
	NotAuthorized:         "You are not authorized to use this command.",
	GeneralError:          "An error occurred. Please try again later.",
	MemoryReset:           "All conversations and facts have been erased.",
	SessionForgotten:      "I've cleared my short-term memory of this conversation.",
}
