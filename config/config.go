package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the learning agent service
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LLMConfig contains chat-completion provider settings
type LLMConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Temperatures per call site; the rewrite call runs warmer than
	// classification, the final answer warmer still.
	ClassifyTemperature float64 `mapstructure:"classify_temperature"`
	RewriteTemperature  float64 `mapstructure:"rewrite_temperature"`
	AnswerTemperature   float64 `mapstructure:"answer_temperature"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required (or set OPENAI_API_KEY)")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	return nil
}

// StorageConfig contains turn store settings
type StorageConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig contains sqlite connection settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

func (s SQLiteConfig) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("storage.sqlite.path required")
	}
	return nil
}

// ConversationConfig tunes history and persona lifecycle behaviour
type ConversationConfig struct {
	HistoryTurns         int `mapstructure:"history_turns"`
	PersonaMaxTurns      int `mapstructure:"persona_max_turns"`
	BypassClearThreshold int `mapstructure:"bypass_clear_threshold"`
	AnswerPreviewChars   int `mapstructure:"answer_preview_chars"`
}

// Normalize applies defaults for unset conversation values.
func (c ConversationConfig) Normalize() ConversationConfig {
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = 5
	}
	if c.PersonaMaxTurns <= 0 {
		c.PersonaMaxTurns = 3
	}
	if c.BypassClearThreshold <= 0 {
		c.BypassClearThreshold = 2
	}
	if c.AnswerPreviewChars <= 0 {
		c.AnswerPreviewChars = 500
	}
	return c
}

// LoadConfig loads config from an optional file plus LEARNAGENT_* env vars.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.listen", ":8000")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.classify_temperature", 0.3)
	viper.SetDefault("llm.rewrite_temperature", 0.5)
	viper.SetDefault("llm.answer_temperature", 0.7)
	viper.SetDefault("storage.sqlite.path", "learning_agent.db")
	viper.SetDefault("conversation.history_turns", 5)
	viper.SetDefault("conversation.persona_max_turns", 3)
	viper.SetDefault("conversation.bypass_clear_threshold", 2)
	viper.SetDefault("conversation.answer_preview_chars", 500)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("LEARNAGENT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		// env-only operation is fine
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	config.Conversation = config.Conversation.Normalize()

	if err := config.Storage.SQLite.Validate(); err != nil {
		panic(err)
	}
	return &config
}
