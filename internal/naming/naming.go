// Package naming provides the case conversions and identifier helpers shared
// by the parser and the code generators.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Words splits s into words. Runs of characters that are neither letters nor
// digits separate words, as do lower-to-upper transitions ("flightId") and the
// end of an acronym followed by a capitalized word ("APIClient").
func Words(s string) []string {
	runes := []rune(strings.TrimSpace(s))
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// ToPascalCase converts s to PascalCase.
// Example: "flight-booking" -> "FlightBooking"
// Example: "API_KEY" -> "ApiKey"
func ToPascalCase(s string) string {
	words := Words(s)
	caser := cases.Title(language.English)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// ToCamelCase converts s to camelCase.
// Example: "list_flights" -> "listFlights"
func ToCamelCase(s string) string {
	words := Words(s)
	if len(words) == 0 {
		return ""
	}
	caser := cases.Title(language.English)
	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// ToKebabCase converts s to kebab-case.
// Example: "FlightBooking" -> "flight-booking"
func ToKebabCase(s string) string {
	words := Words(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-")
}

// ToConstantCase converts s to CONSTANT_CASE.
// Example: "FlightApi" -> "FLIGHT_API"
func ToConstantCase(s string) string {
	words := Words(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return strings.Join(words, "_")
}

// Capitalize upper-cases the first rune and leaves the rest untouched.
func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Pluralize returns the plural of the PascalCase form of s.
// Example: "flight" -> "Flights", "Category" -> "Categories"
func Pluralize(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return s + "s"
	}
	return inflect.Pluralize(pascal)
}

// Singularize returns the singular form of a (usually lower-case) path segment.
func Singularize(s string) string {
	return inflect.Singularize(s)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsValidIdentifier reports whether s can be used as a bare TypeScript identifier.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// FormatPropertyName quotes property names that are not bare identifiers.
func FormatPropertyName(name string) string {
	if IsValidIdentifier(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", `\'`) + "'"
}

// NormalizeAPIName turns free text such as a document title into a PascalCase
// API name. Words are capitalized but otherwise kept as written.
// Example: "Flight booking API" -> "FlightBookingAPI"
func NormalizeAPIName(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(Capitalize(f))
	}
	if b.Len() == 0 {
		return "GeneratedApi"
	}
	return b.String()
}
