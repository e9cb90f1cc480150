// Package validation holds input rules shared by the request handlers and the services.
package validation

import (
	"fmt"
	"unicode/utf8"

	"emojifeed/internal/models"

	"github.com/rivo/uniseg"
)

const (
	// MaxContentLength is counted in Unicode scalar values, not bytes.
	MaxContentLength = 280
	// MaxIDLength bounds opaque identifiers accepted from clients.
	MaxIDLength = 1000

	// EmojiOnlyMessage is shown to clients when post content contains anything but emoji.
	EmojiOnlyMessage = "Only emojis are allowed!"
)

// PostContent checks that content holds 1..280 scalar values and only emoji grapheme clusters.
func PostContent(content string) error {
	if !IsEmojiOnly(content) {
		return models.NewFieldValidationError("content", EmojiOnlyMessage)
	}
	n := utf8.RuneCountInString(content)
	if n < 1 {
		return models.NewFieldValidationError("content", "Content must contain at least 1 character")
	}
	if n > MaxContentLength {
		return models.NewFieldValidationError("content",
			fmt.Sprintf("Content must contain at most %d characters", MaxContentLength))
	}
	return nil
}

// ID checks an opaque identifier supplied by a client.
func ID(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < 1 {
		return models.NewFieldValidationError(field, field+" is required")
	}
	if n > MaxIDLength {
		return models.NewFieldValidationError(field,
			fmt.Sprintf("%s must contain at most %d characters", field, MaxIDLength))
	}
	return nil
}

// IsEmojiOnly reports whether s is non-empty and every grapheme cluster in it is an emoji.
func IsEmojiOnly(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		if !isEmojiCluster(gr.Runes()) {
			return false
		}
	}
	return true
}

func isEmojiCluster(runes []rune) bool {
	if len(runes) == 0 {
		return false
	}
	if isKeycap(runes) {
		return true
	}
	if isRegionalIndicator(runes[0]) {
		for _, r := range runes {
			if !isRegionalIndicator(r) {
				return false
			}
		}
		return len(runes) <= 2
	}

	pictographic := false
	for _, r := range runes {
		switch {
		case isExtendedPictographic(r):
			pictographic = true
		case isEmojiComponent(r):
		default:
			return false
		}
	}
	return pictographic
}

// isKeycap matches sequences such as "1️⃣" and "#⃣".
func isKeycap(runes []rune) bool {
	if len(runes) < 2 || runes[len(runes)-1] != 0x20E3 {
		return false
	}
	base := runes[0]
	if !(base >= '0' && base <= '9') && base != '#' && base != '*' {
		return false
	}
	switch len(runes) {
	case 2:
		return true
	case 3:
		return runes[1] == 0xFE0F
	default:
		return false
	}
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

// isEmojiComponent covers joiners, presentation selectors, skin tone modifiers,
// the combining keycap and tag characters used by subdivision flags.
func isEmojiComponent(r rune) bool {
	switch {
	case r == 0x200D, r == 0xFE0F, r == 0xFE0E, r == 0x20E3:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}
