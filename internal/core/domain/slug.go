package domain

import (
	"regexp"
	"strings"
)

// =============================================================================
// Slug Normalization
// =============================================================================

// slugPattern accepts a lower-kebab identifier: a leading letter, at most 20
// (alnum, optional dash, optional alnum) groups and a trailing alnum.
var slugPattern = regexp.MustCompile(`^[a-z](([a-z0-9]-?([a-z0-9])?){0,20}[a-z0-9])$`)

// separatorPattern matches a run of spaces together with the dashes around it.
var separatorPattern = regexp.MustCompile(`-*( +-*)+`)

// NormalizeSlug converts a display name to a page slug.
//
// The transformation rules are:
//   - Uppercase letters (A-Z) are converted to lowercase
//   - Everything outside [a-z0-9-] and space is removed
//   - Surrounding spaces are trimmed
//   - Each run of spaces, with any dashes next to it, becomes one hyphen
//
// The result must then match slugPattern, otherwise ErrInvalidSlug is
// returned.
//
// Example:
//
//	NormalizeSlug("My Cool Game!")  // returns "my-cool-game", nil
//	NormalizeSlug("My Game - Demo") // returns "my-game-demo", nil
//	NormalizeSlug("123-Project")    // returns "", ErrInvalidSlug
//	NormalizeSlug("-bad")           // returns "", ErrInvalidSlug
func NormalizeSlug(name string) (string, error) {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ':
			b.WriteRune(r)
		}
		// All other characters are dropped
	}

	slug := strings.Trim(b.String(), " ")
	slug = separatorPattern.ReplaceAllString(slug, "-")
	if !slugPattern.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// IsValidSlug reports whether s is already a normalized slug.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
