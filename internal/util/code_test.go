package util

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	t.Run("generates 8 uppercase alphanumeric characters", func(t *testing.T) {
		pattern := regexp.MustCompile(`^[A-Z0-9]{8}$`)
		for i := 0; i < 200; i++ {
			code, err := GenerateCode()
			require.NoError(t, err)
			assert.Len(t, code, CodeLength)
			assert.True(t, pattern.MatchString(code), "unexpected code: %s", code)
		}
	})

	t.Run("uses only alphabet characters", func(t *testing.T) {
		code, err := GenerateCode()
		require.NoError(t, err)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, c), "character '%c' should be in alphabet", c)
		}
	})

	t.Run("generated codes always validate", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := GenerateCode()
			require.NoError(t, err)
			assert.True(t, ValidateCode(code))
		}
	})
}

func TestCodeAlphabet(t *testing.T) {
	assert.Len(t, CodeAlphabet, 36)
}

func TestValidateCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"ABCD1234", true},
		{"00000000", true},
		{"ZZZZZZZZ", true},
		{"abc12345", false},
		{"ABCd1234", false},
		{"TOOLONGCODE", false},
		{"SHORT", false},
		{"", false},
		{"ABCD-123", false},
		{"ABCD 123", false},
		{"ABCD1234\n", false},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateCode(tc.code))
		})
	}
}

func TestPartnerID(t *testing.T) {
	assert.Equal(t, "demo_user_1700000000000", PartnerID(time.UnixMilli(1_700_000_000_000)))
}
