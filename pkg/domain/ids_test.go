package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "citepay/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCitationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCitationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCitationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseCitationID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, CitationID(validUUID), id)
	})
}

// TestParseID_Rejections validates parsing rejects malformed input at API
// entry points.
func TestParseID_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE citations;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePaymentID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestIDJSONRoundTrip ensures IDs marshal as canonical UUID strings, not
// raw byte arrays.
func TestIDJSONRoundTrip(t *testing.T) {
	original := NewCitationID()

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(data))

	var decoded CitationID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	var rejected CitationID
	err = json.Unmarshal([]byte(`"not-a-uuid"`), &rejected)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types share identical
// parsing behavior.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errCitation := ParseCitationID(validUUID)
		_, errPayment := ParsePaymentID(validUUID)
		_, errViolation := ParseViolationTypeID(validUUID)
		_, errEntry := ParseAuditEntryID(validUUID)

		require.NoError(t, errCitation)
		require.NoError(t, errPayment)
		require.NoError(t, errViolation)
		require.NoError(t, errEntry)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errCitation := ParseCitationID(input)
			_, errPayment := ParsePaymentID(input)
			_, errViolation := ParseViolationTypeID(input)
			_, errEntry := ParseAuditEntryID(input)

			require.Error(t, errCitation)
			require.Error(t, errPayment)
			require.Error(t, errViolation)
			require.Error(t, errEntry)
		})
	}
}
