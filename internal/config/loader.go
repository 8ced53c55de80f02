package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/amy-assistant/amy/internal/errors"
)

// Load loads and validates configuration from, in order of precedence:
// AMY_* environment variables, the YAML file at path, and built-in defaults.
// A missing config file is not an error; missing required values are.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("AMY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no defaults, so viper needs explicit bindings for them
	// to be visible to Unmarshal when they come from the environment only.
	for _, key := range []string{"telegram.token", "telegram.admin_id", "gemini.api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to bind env for %s", key), err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
		}
		// Config file not found is okay, defaults and env vars apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to parse config", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelaySeconds)
	v.SetDefault("gemini.system_instruction", DefaultGeminiInstruction)

	v.SetDefault("memory.buffer_capacity", DefaultBufferCapacity)
	v.SetDefault("memory.context_max_chars", DefaultContextMaxChars)
	v.SetDefault("memory.context_recent_turns", DefaultContextRecentTurns)
	v.SetDefault("memory.context_fact_limit", DefaultContextFactLimit)
	v.SetDefault("memory.similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("memory.min_relevance", DefaultMinRelevance)
	v.SetDefault("memory.extractor", DefaultExtractor)

	v.SetDefault("telegram.messages.greeting_new_user", defaultMessages.GreetingNewUser)
	v.SetDefault("telegram.messages.greeting_returning_user", defaultMessages.GreetingReturningUser)
	v.SetDefault("telegram.messages.not_authorized", defaultMessages.NotAuthorized)
	v.SetDefault("telegram.messages.general_error", defaultMessages.GeneralError)
	v.SetDefault("telegram.messages.memory_reset", defaultMessages.MemoryReset)
	v.SetDefault("telegram.messages.session_forgotten", defaultMessages.SessionForgotten)
}
