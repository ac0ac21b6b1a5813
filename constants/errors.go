package constants

// ErrorCategory classifies a failure message for retry routing and reporting.
type ErrorCategory string

// Stable values (stored in transition metadata).
const (
	CategoryAIExtraction    ErrorCategory = "ai_extraction_error"
	CategoryImageProcessing ErrorCategory = "image_processing_error"
	CategoryDataValidation  ErrorCategory = "data_validation_error"
	CategoryFileAccess      ErrorCategory = "file_access_error"
	CategoryNetwork         ErrorCategory = "network_error"
	CategoryConfiguration   ErrorCategory = "configuration_error"
	CategoryTimeout         ErrorCategory = "timeout_error"
	CategoryUnknown         ErrorCategory = "unknown_error"
)

// RetryStrategy selects the backoff function for retry pacing.
type RetryStrategy string

const (
	StrategyImmediate   RetryStrategy = "immediate"
	StrategyFixed       RetryStrategy = "fixed_delay"
	StrategyLinear      RetryStrategy = "linear_backoff"
	StrategyExponential RetryStrategy = "exponential_backoff"
)

// ParseRetryStrategy converts a configured string into a RetryStrategy.
func ParseRetryStrategy(s string) (RetryStrategy, bool) {
	switch RetryStrategy(s) {
	case StrategyImmediate, StrategyFixed, StrategyLinear, StrategyExponential:
		return RetryStrategy(s), true
	}
	return "", false
}
