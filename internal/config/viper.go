// Package config holds the Viper glue shared by CLI commands:
// environment-aware lookups and oracle API-key resolution.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Environment variables the harmonizer reads.
const (
	EnvLogLevel      = "HARMONIZER_LOG_LEVEL"
	EnvLogFormat     = "HARMONIZER_LOG_FORMAT"
	EnvStorePath     = "HARMONIZER_DB"
	EnvThemesPath    = "HARMONIZER_THEMES"
	EnvPrimaryOracle = "HARMONIZER_PRIMARY_ORACLE"

	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvGoogleAPIKey  = "GOOGLE_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	// If Viper doesn't have it but OS does, return OS value
	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// GeminiAPIKey returns the Gemini API key, honoring both GEMINI_API_KEY
// and the GenAI SDK's GOOGLE_API_KEY spelling.
func GeminiAPIKey() string {
	if key := GetString(EnvGeminiAPIKey); key != "" {
		return key
	}
	return GetString(EnvGoogleAPIKey)
}

// OpenAIAPIKey returns the API key for the OpenAI-compatible oracle.
func OpenAIAPIKey() string {
	return GetString(EnvOpenAIAPIKey)
}

// OpenAIBaseURL returns the configured chat-completions endpoint, or ""
// for the default.
func OpenAIBaseURL() string {
	return strings.TrimRight(GetString(EnvOpenAIBaseURL), "/")
}

// BindEnv explicitly binds the harmonizer's environment variables to
// Viper so .env-loaded values are visible even without a config file.
func BindEnv() {
	keys := []string{
		EnvLogLevel,
		EnvLogFormat,
		EnvStorePath,
		EnvThemesPath,
		EnvPrimaryOracle,
		EnvGeminiAPIKey,
		EnvGoogleAPIKey,
		EnvOpenAIAPIKey,
		EnvOpenAIBaseURL,
	}
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}
