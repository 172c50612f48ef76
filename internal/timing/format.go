package timing

import (
	"strings"
	"unicode"
)

// Style is an emphasis style carried over from the source text.
type Style int

const (
	// StyleNone means no emphasis.
	StyleNone Style = iota
	// StyleBold renders the word bold.
	StyleBold
	// StyleItalic renders the word italic.
	StyleItalic
	// StyleBoldItalic renders the word bold and italic.
	StyleBoldItalic
)

// String returns the wire name of the style.
func (s Style) String() string {
	switch s {
	case StyleBold:
		return "bold"
	case StyleItalic:
		return "italic"
	case StyleBoldItalic:
		return "bold-italic"
	default:
		return "none"
	}
}

// ParseStyle maps a wire style name to a Style. Unknown names map to
// StyleNone rather than erroring; formatting is cosmetic.
func ParseStyle(name string) Style {
	switch name {
	case "bold":
		return StyleBold
	case "italic":
		return StyleItalic
	case "bold-italic":
		return StyleBoldItalic
	default:
		return StyleNone
	}
}

// FormattingMap maps a normalized word to its emphasis style. It is
// consulted once per word at build/show time, never per tick.
type FormattingMap map[string]Style

// Lookup returns the style for a word, normalizing it first.
func (m FormattingMap) Lookup(word string) Style {
	if len(m) == 0 {
		return StyleNone
	}
	return m[Normalize(word)]
}

// Normalize reduces a word to its formatting key: lower-cased, with
// everything but letters, digits and apostrophes stripped. Punctuation
// attached to a word must not defeat the lookup.
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
