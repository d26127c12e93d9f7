package slug

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from the given name.
//
// Examples:
//   - "Sports Equipment" → "sports-equipment"
//   - "Casio FX-991ES  (barely used)" → "casio-fx-991es-barely-used"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	return s
}

// WithSuffix appends a short suffix to a slug, used to disambiguate
// colliding slugs ("calculus-textbook" → "calculus-textbook-3f2a").
func WithSuffix(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return fmt.Sprintf("%s-%s", base, suffix)
}
