// Package errclass maps free-text failure messages onto a closed set of
// categories used for retry routing and error reporting.
package errclass

import (
	"strings"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// keywordTable pairs each category with its trigger substrings. Order matters:
// the first category with a matching keyword wins, so broader buckets like
// timeout_error sit below the more specific ones that share keywords.
var keywordTable = []struct {
	category constants.ErrorCategory
	keywords []string
}{
	{constants.CategoryAIExtraction, []string{
		"openai", "anthropic", "api", "model", "extraction", "vision",
		"token", "rate limit", "quota", "authentication",
	}},
	{constants.CategoryImageProcessing, []string{
		"image", "corrupt", "decode", "png", "resize", "crop", "rotate",
	}},
	{constants.CategoryDataValidation, []string{
		"validation", "required", "parse", "convert", "type", "data format",
	}},
	{constants.CategoryFileAccess, []string{
		"file", "permission", "not found", "access", "read", "write",
		"directory", "path", "exists",
	}},
	{constants.CategoryNetwork, []string{
		"network", "connection", "timeout", "dns", "http", "ssl",
		"socket", "unreachable",
	}},
	{constants.CategoryConfiguration, []string{
		"config", "setting", "environment", "variable", "missing config",
	}},
	{constants.CategoryTimeout, []string{
		"timeout", "timed out", "expired", "deadline",
	}},
}

// priorities ranks categories for error summaries; 1 is most urgent.
var priorities = map[constants.ErrorCategory]int{
	constants.CategoryConfiguration:   1,
	constants.CategoryFileAccess:      2,
	constants.CategoryDataValidation:  3,
	constants.CategoryAIExtraction:    4,
	constants.CategoryImageProcessing: 5,
	constants.CategoryNetwork:         6,
	constants.CategoryTimeout:         7,
	constants.CategoryUnknown:         8,
}

// Categorize maps a failure message to its category via case-insensitive
// substring match, falling back to unknown_error. Deterministic and
// side-effect-free.
func Categorize(message string) constants.ErrorCategory {
	lower := strings.ToLower(message)
	for _, entry := range keywordTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return constants.CategoryUnknown
}

// Priority returns the urgency rank for a category (1 = most urgent).
func Priority(category constants.ErrorCategory) int {
	if p, ok := priorities[category]; ok {
		return p
	}
	return 9
}
