// Package loader coerces raw extracted invoice and statement records into the
// canonical model with amounts in integer cents.
package loader

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/shopspring/decimal"
)

// maxAmountDigits keeps parsed amounts well inside int64 cents.
const maxAmountDigits = 15

// ParseAmount converts an extracted amount to cents. It accepts an optional
// currency symbol or code, thousands separators, and a leading minus or
// accounting parentheses for negatives. Anything else, including sub-cent
// precision, is a malformed value: OCR noise is reported, never guessed at.
func ParseAmount(raw model.RawAmount) (model.Cents, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: missing amount", common.ErrMalformedRecord)
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(s), "USD"))
	if strings.HasPrefix(s, "-") {
		if neg {
			return 0, fmt.Errorf("%w: amount %q has two negative markers", common.ErrMalformedRecord, raw)
		}
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-") && !neg {
		neg = true
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "")

	if s == "" || strings.Count(s, ".") > 1 {
		return 0, fmt.Errorf("%w: amount %q is not numeric", common.ErrMalformedRecord, raw)
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
		default:
			return 0, fmt.Errorf("%w: amount %q is not numeric", common.ErrMalformedRecord, raw)
		}
	}
	if digits == 0 || digits > maxAmountDigits {
		return 0, fmt.Errorf("%w: amount %q is not numeric", common.ErrMalformedRecord, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", common.ErrMalformedRecord, raw, err)
	}

	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has sub-cent precision", common.ErrMalformedRecord, raw)
	}

	c := model.Cents(cents.IntPart())
	if neg {
		c = -c
	}
	return c, nil
}

// NormalizeKey canonicalizes a lot/reference key: surrounding whitespace is
// dropped, inner runs of whitespace collapse to one space, letters are
// upper-cased. The result is the exact join key used by the matcher.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(key), " "))
}
