package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"wabroadcast/internal/constants"

	"github.com/stretchr/testify/assert"
)

func TestValidateDeviceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "work phone", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", constants.MaxDeviceNameLength+1), true},
		{"newline", "work\nphone", true},
		{"null byte", "work\x00phone", true},
		{"unicode", "téléphone", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("alice_01"))
	assert.NoError(t, ValidateUserID("team-broadcast"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("alice smith"))
	assert.Error(t, ValidateUserID("alice@example.com"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 129)))
}

func TestValidateTargetGroups(t *testing.T) {
	tests := []struct {
		name    string
		groups  []string
		wantErr bool
	}{
		{"single group", []string{"12345@g.us"}, false},
		{"multiple groups", []string{"a@g.us", "b@g.us"}, false},
		{"empty list", nil, true},
		{"duplicate", []string{"a@g.us", "a@g.us"}, true},
		{"blank entry", []string{"a@g.us", ""}, true},
		{"entry with space", []string{"a b"}, true},
		{"too many", make([]string, constants.MaxTargetGroups+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "too many" {
				for i := range tt.groups {
					tt.groups[i] = strings.Repeat("g", i+1)
				}
			}
			err := ValidateTargetGroups(tt.groups)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessageBody(t *testing.T) {
	assert.NoError(t, ValidateMessageBody("hello"))
	assert.Error(t, ValidateMessageBody(""))
	assert.Error(t, ValidateMessageBody("  \t  "))
	assert.Error(t, ValidateMessageBody(strings.Repeat("x", constants.MaxMessageBodyLength+1)))
}

func TestValidateAttachmentURL(t *testing.T) {
	assert.NoError(t, ValidateAttachmentURL("https://files.example/pic.png"))
	assert.NoError(t, ValidateAttachmentURL("http://files.example/doc.pdf"))
	assert.Error(t, ValidateAttachmentURL(""))
	assert.Error(t, ValidateAttachmentURL("ftp://files.example/doc.pdf"))
	assert.Error(t, ValidateAttachmentURL("file:///etc/passwd"))
}

func TestValidatePhoneNumber(t *testing.T) {
	assert.NoError(t, ValidatePhoneNumber("+15551234567"))
	assert.NoError(t, ValidatePhoneNumber("15551234567"))
	// Short numbers are stored as the backend reports them.
	assert.NoError(t, ValidatePhoneNumber("+1555"))
	assert.Error(t, ValidatePhoneNumber(""))
	assert.Error(t, ValidatePhoneNumber("+"))
	assert.Error(t, ValidatePhoneNumber("+1555123abcd"))
	assert.Error(t, ValidatePhoneNumber("+"+strings.Repeat("5", 21)))
}

func TestValidateHTTPRequestSize(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader("body"))
	req.ContentLength = 4
	assert.NoError(t, ValidateHTTPRequestSize(req, 1024))

	req.ContentLength = 2048
	assert.Error(t, ValidateHTTPRequestSize(req, 1024))

	req.ContentLength = -1
	assert.Error(t, ValidateHTTPRequestSize(req, 1024))
}

func TestValidateTimeout(t *testing.T) {
	assert.NoError(t, ValidateTimeout(30, "requestTimeout"))
	assert.Error(t, ValidateTimeout(0, "requestTimeout"))
	assert.Error(t, ValidateTimeout(3601, "requestTimeout"))
}
