package sequence

import (
	"testing"
	"time"

	"github.com/sga/schoolhub/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptNumbersAreSequentialWithinADay(t *testing.T) {
	prefix := ReceiptPrefix("REC", time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "REC20250101", prefix)

	first, err := Next(prefix, "", SuffixWidth)
	require.NoError(t, err)
	assert.Equal(t, "REC202501010001", first)

	second, err := Next(prefix, first, SuffixWidth)
	require.NoError(t, err)
	assert.Equal(t, "REC202501010002", second)
}

func TestStudentCodeResetsEachYear(t *testing.T) {
	prefix := StudentCodePrefix("SGA", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))

	code, err := Next(prefix, "", SuffixWidth)
	require.NoError(t, err)
	assert.Equal(t, "SGA20260001", code)

	code, err = Next(prefix, "SGA20260041", SuffixWidth)
	require.NoError(t, err)
	assert.Equal(t, "SGA20260042", code)
}

func TestNextRejectsForeignOrMalformedCodes(t *testing.T) {
	_, err := Next("SGA2026", "SGA20250007", SuffixWidth)
	assert.Error(t, err)

	_, err = Next("SGA2026", "SGA2026ABCD", SuffixWidth)
	assert.Error(t, err)
}

func TestNextExhausted(t *testing.T) {
	_, err := Next("REC20250101", "REC202501019999", SuffixWidth)
	assert.ErrorIs(t, err, apperrors.ErrSequenceExhausted)
}
