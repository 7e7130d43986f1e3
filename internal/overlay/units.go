package overlay

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Unit is the measure used by the grammar service for positions
type Unit string

const (
	// UnitRune counts Unicode code points
	UnitRune Unit = "rune"
	// UnitByte counts UTF-8 bytes
	UnitByte Unit = "byte"
	// UnitUTF16 counts UTF-16 code units, as JavaScript strings do
	UnitUTF16 Unit = "utf16"
)

// ParseUnit maps a configuration value to a Unit. Empty means UnitRune.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitRune:
		return UnitRune, nil
	case UnitByte:
		return UnitByte, nil
	case UnitUTF16:
		return UnitUTF16, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// byteOffset converts pos, measured in unit, to a byte offset in text.
// Positions past the end clamp to len(text); a position falling inside a
// multi-unit character rounds down to the character start.
func byteOffset(text string, pos int, unit Unit) int {
	if pos <= 0 {
		return 0
	}
	if unit == UnitByte {
		if pos >= len(text) {
			return len(text)
		}
		// step back to a rune boundary
		for pos > 0 && !utf8.RuneStart(text[pos]) {
			pos--
		}
		return pos
	}

	units := 0
	for i, r := range text {
		w := 1
		if unit == UnitUTF16 && r >= 0x10000 {
			w = 2
		}
		if units+w > pos {
			return i
		}
		units += w
	}
	return len(text)
}
