// Package constants provides shared constants used throughout the harmonizer
// codebase. This includes timeouts, limits, file permissions, and other
// configuration values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to oracle APIs
	DefaultHTTPTimeout = 30 * time.Second

	// OracleProposeTimeout is the timeout for a single oracle proposal call
	OracleProposeTimeout = 2 * time.Minute

	// ResolveTimeout is the timeout for one full mapping resolution pass,
	// covering the concurrent oracle fan-out and the selection barrier
	ResolveTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for oracle retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for oracle retries
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for transient oracle failures
	MaxRetries = 3

	// MaxKeysPerRequest is the maximum number of raw keys sent in one oracle call
	MaxKeysPerRequest = 200

	// MaxColumnNameLength is the maximum allowed length for a column key
	MaxColumnNameLength = 256
)

// Type inference constants
const (
	// CategoricalMaxDistinct is the largest distinct-value count a non-numeric
	// column may have, as a share of row count, to be treated as categorical
	CategoricalMaxDistinct = 0.2

	// CategoricalAbsoluteCap bounds the distinct-value count for categorical
	// columns regardless of table size
	CategoricalAbsoluteCap = 50

	// OrdinalScaleMax is the largest integer rating-scale span treated as ordinal
	OrdinalScaleMax = 11
)

// Default values
const (
	// DefaultPrimaryOracle is the oracle whose proposals win tie-breaks
	// when none is designated explicitly
	DefaultPrimaryOracle = "gemini"

	// DefaultGeminiModel is the Gemini model used for naming proposals
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultOpenAIModel is the chat model used by the HTTP JSON oracle
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Path constants
const (
	// DefaultStorePath is the default path for the SQLite table store
	DefaultStorePath = "~/.harmonizer/harmonizer.db"
)

// Format constants
const (
	// TimeFormatISO8601 is the ISO 8601 time format
	TimeFormatISO8601 = time.RFC3339
)
