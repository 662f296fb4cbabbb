package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative path", "config/config.json", false},
		{"absolute path", "/etc/wabroadcast/config.json", false},
		{"empty path", "", true},
		{"traversal", "../../../etc/passwd", true},
		{"embedded traversal", "config/../../../etc/passwd", true},
		{"dot in filename", "config/app.v2.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	assert.NoError(t, ValidateFilePathWithBase("media/pic.png", "/var/lib/wabroadcast"))
	assert.Error(t, ValidateFilePathWithBase("/etc/passwd", "/var/lib/wabroadcast"))
	assert.Error(t, ValidateFilePathWithBase("../outside", "/var/lib/wabroadcast"))
}
