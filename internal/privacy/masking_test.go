package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"international", "+1234567890", "+******7890"},
		{"without plus", "1234567890", "******7890"},
		{"short with plus", "+123", "+***"},
		{"bare plus", "+", "+"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhoneNumber(tt.input))
		})
	}
}

func TestMaskGroupID(t *testing.T) {
	assert.Equal(t, "******7890@g.us", MaskGroupID("1234567890@g.us"))
	assert.Equal(t, "****", MaskGroupID("abcd"))
	assert.Equal(t, "**cdef", MaskGroupID("abcdef"))
	assert.Equal(t, "", MaskGroupID(""))
}

func TestMaskUserID(t *testing.T) {
	assert.Equal(t, "******3456", MaskUserID("user123456"))
	assert.Equal(t, "***", MaskUserID("abc"))
	assert.Equal(t, "", MaskUserID(""))
}

func TestMaskCredentialLeaksOnlyLength(t *testing.T) {
	masked := MaskCredential("2@AbCdEfGh")
	assert.Equal(t, "**********", masked)
	assert.Equal(t, "", MaskCredential(""))
}

func TestMaskSensitiveFields(t *testing.T) {
	fields := map[string]interface{}{
		"phone_number": "+1234567890",
		"group_id":     "1234567890@g.us",
		"user_id":      "user123456",
		"credential":   "2@AbCdEfGh",
		"message_id":   "m-1",
		"count":        3,
	}

	masked := MaskSensitiveFields(fields)
	assert.Equal(t, "+******7890", masked["phone_number"])
	assert.Equal(t, "******7890@g.us", masked["group_id"])
	assert.Equal(t, "******3456", masked["user_id"])
	assert.Equal(t, "**********", masked["credential"])
	assert.Equal(t, "m-1", masked["message_id"])
	assert.Equal(t, 3, masked["count"])
}

func TestMaskSensitiveFieldsNil(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))
}
