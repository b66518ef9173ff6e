package registry

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// camelBoundary matches a lowercase letter directly followed by an uppercase one.
var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// Normalize normalizes a column description:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// UndoCamelCase splits a camel-cased name into lowercase words.
// An uppercase run stays together: "inclinationNS" becomes "inclination ns".
func UndoCamelCase(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "$1 $2"))
}
