package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "citepay/pkg/domain-errors"
)

func TestNormalizeReceiptNumber(t *testing.T) {
	assert.Equal(t, "CGVM00000001", NormalizeReceiptNumber("  cgvm00000001 "))
	assert.Equal(t, "00012345", NormalizeReceiptNumber("00012345"))
}

func TestValidateReceiptNumber(t *testing.T) {
	valid := []string{"00000001", "12345678", "CGVM00000001", "ABCD99999999"}
	for _, receipt := range valid {
		assert.NoError(t, ValidateReceiptNumber(receipt), receipt)
	}

	invalid := []string{
		"",
		"1234567",       // too short
		"123456789",     // too long
		"CGV00000001",   // 3-letter prefix
		"CGVMX00000001", // 5-letter prefix
		"cgvm00000001",  // not normalized
		"CGVM0000001",   // 7 digits after prefix
		"CGVM000000012", // 9 digits after prefix
	}
	for _, receipt := range invalid {
		err := ValidateReceiptNumber(receipt)
		require.Error(t, err, receipt)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), receipt)
	}
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusPendingPrint.Active())
	assert.True(t, StatusCompleted.Active())
	assert.False(t, StatusVoided.Active())
	assert.False(t, StatusRefunded.Active())
	assert.False(t, StatusCancelled.Active())
}

func TestMethodValid(t *testing.T) {
	assert.True(t, MethodCash.Valid())
	assert.True(t, MethodCheck.Valid())
	assert.True(t, MethodOnline.Valid())
	assert.False(t, Method("barter").Valid())
	assert.False(t, Method("").Valid())
}
