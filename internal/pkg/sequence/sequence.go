// Package sequence builds prefix-scoped, zero-padded sequential codes such as
// receipt numbers (REC202501010001) and student codes (SGA20250001).
//
// The package is pure: callers read the latest issued code for a prefix and
// persist the result while holding a per-prefix lock.
package sequence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sga/schoolhub/internal/pkg/apperrors"
)

// SuffixWidth is the number of digits after the prefix
const SuffixWidth = 4

// ReceiptPrefix scopes receipts to a calendar day
func ReceiptPrefix(base string, t time.Time) string {
	return base + t.Format("20060102")
}

// StudentCodePrefix scopes student codes to a calendar year
func StudentCodePrefix(base string, t time.Time) string {
	return base + t.Format("2006")
}

// Next returns the code following last within prefix. An empty last starts
// the sequence at 1. The suffix never widens: once it would exceed width
// digits, ErrSequenceExhausted is returned.
func Next(prefix, last string, width int) (string, error) {
	n := 0
	if last != "" {
		if !strings.HasPrefix(last, prefix) || len(last) < len(prefix)+width {
			return "", fmt.Errorf("code %q does not belong to prefix %q", last, prefix)
		}
		current, err := strconv.Atoi(last[len(last)-width:])
		if err != nil {
			return "", fmt.Errorf("code %q has a non-numeric suffix: %w", last, err)
		}
		n = current
	}

	n++
	if float64(n) > math.Pow10(width)-1 {
		return "", apperrors.Wrap(apperrors.ErrSequenceExhausted,
			fmt.Sprintf("no codes left for prefix %s", prefix))
	}
	return fmt.Sprintf("%s%0*d", prefix, width, n), nil
}
