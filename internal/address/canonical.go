// Package address builds the canonical label and comparison key for pickup
// addresses. The label is what gets persisted on agreements and vehicles;
// the key is what everything matches on. Raw string comparison of labels is
// never correct because the same address is re-typed by different actors
// with case, accent and punctuation drift.
package address

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Label joins the structured fields into the display form persisted on both
// agreement and vehicle rows: "<street> <number>, <city>". Empty fields are
// skipped without leaving dangling separators.
func Label(street, number, city string) string {
	street = strings.TrimSpace(street)
	number = strings.TrimSpace(number)
	city = strings.TrimSpace(city)

	first := street
	if number != "" {
		if first != "" {
			first += " " + number
		} else {
			first = number
		}
	}

	switch {
	case first == "":
		return city
	case city == "":
		return first
	default:
		return first + ", " + city
	}
}

// Key normalizes a label for comparison: lower-cased, diacritics stripped,
// punctuation dropped, whitespace collapsed. Two labels a human would read
// as the same address must produce the same key.
func Key(label string) string {
	lowered := strings.ToLower(label)
	stripped, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSpace := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.IsPunct(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// Equal reports whether two labels refer to the same address.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
