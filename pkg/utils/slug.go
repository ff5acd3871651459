package utils

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile("[^a-z0-9]+")

// Slugify lower-cases s and joins its alphanumeric runs with hyphens
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeKey turns free-form classification values ("Financial Fraud") into the
// snake_case keys rules are matched on ("financial_fraud").
func NormalizeKey(s string) string {
	return strings.ReplaceAll(Slugify(s), "-", "_")
}
