package util

import (
	"regexp"
)

var symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// ValidateSymbol accepts asset ticker symbols like BTC or ETH.
func ValidateSymbol(symbol string) bool {
	return symbolRe.MatchString(symbol)
}

// ValidateCategoryName bounds user-supplied custom category names.
func ValidateCategoryName(name string) bool {
	return len(name) >= 1 && len(name) <= 50
}

// ValidateRuleDescription bounds the description a category rule matches
// on.
func ValidateRuleDescription(description string) bool {
	return len(description) >= 1 && len(description) <= 200
}
