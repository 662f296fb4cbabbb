package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"wabroadcast/internal/constants"
	"wabroadcast/internal/errors"
)

// ValidateDeviceName validates a device display name
func ValidateDeviceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "device name cannot be empty")
	}

	if len(name) > constants.MaxDeviceNameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("device name too long (max %d characters)", constants.MaxDeviceNameLength))
	}

	for _, char := range name {
		if char == '\x00' || char == '\n' || char == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "device name contains invalid characters")
		}
	}

	return nil
}

// ValidateUserID validates an account identifier
func ValidateUserID(userID string) error {
	if userID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "user ID cannot be empty")
	}

	if len(userID) > 128 {
		return errors.New(errors.ErrCodeInvalidInput, "user ID too long (max 128 characters)")
	}

	for _, char := range userID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"user ID must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateGroupID validates a single broadcast target group ID
func ValidateGroupID(groupID string) error {
	if groupID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group ID cannot be empty")
	}

	if len(groupID) > constants.MaxGroupIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("group ID too long (max %d characters)", constants.MaxGroupIDLength))
	}

	for _, char := range groupID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' || char == ' ' {
			return errors.New(errors.ErrCodeInvalidInput, "group ID contains invalid characters")
		}
	}

	return nil
}

// ValidateTargetGroups validates the full broadcast target list
func ValidateTargetGroups(groups []string) error {
	if len(groups) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one target group is required")
	}

	if len(groups) > constants.MaxTargetGroups {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("too many target groups (max %d)", constants.MaxTargetGroups))
	}

	seen := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		if err := ValidateGroupID(group); err != nil {
			return err
		}
		if _, dup := seen[group]; dup {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("duplicate target group: %s", group))
		}
		seen[group] = struct{}{}
	}

	return nil
}

// ValidateMessageBody validates broadcast message content
func ValidateMessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message body cannot be empty")
	}

	if len(body) > constants.MaxMessageBodyLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message body too long (max %d characters)", constants.MaxMessageBodyLength))
	}

	return nil
}

// ValidateAttachmentURL validates an attachment location
func ValidateAttachmentURL(rawURL string) error {
	if rawURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "attachment URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "attachment URL is not a valid URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New(errors.ErrCodeInvalidInput, "attachment URL must use http or https")
	}

	return nil
}

// ValidatePhoneNumber validates phone number format. The session backend
// reports the number verbatim from the paired account, so no minimum
// length is imposed; only the shape is checked.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")

	if cleaned == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number must contain digits")
	}
	if len(cleaned) > 20 {
		return errors.New(errors.ErrCodeInvalidInput, "phone number too long (max 20 digits)")
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}
