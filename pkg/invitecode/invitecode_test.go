package invitecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_FormatAndAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Len(t, code, Length)
		assert.NoError(t, Validate(code), "generated code %q must validate", code)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "QX7K2PLM", Normalize("  qx7k2plm\n"))
	assert.Equal(t, "QX7K2PLM", Normalize("QX7K2PLM"))
	assert.Equal(t, "", Normalize("   "))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"eight chars", "QX7K2PLM", true},
		{"minimum length", "ABC123", true},
		{"maximum length", "ABCDEFGHIJ123456", true},
		{"too short", "ABC12", false},
		{"too long", "ABCDEFGHIJ1234567", false},
		{"lower case is not normalized", "qx7k2plm", false},
		{"punctuation", "QX7K-PLM", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.code)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}
