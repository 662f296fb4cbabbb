package privacy

import (
	"strings"

	"wabroadcast/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskLength

	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 {
			return phone
		}
		if len(phone) <= keep+1 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-keep-1) + phone[len(phone)-keep:]
	}

	return maskString(phone, keep)
}

// MaskGroupID masks a broadcast target group ID while keeping the domain
// suffix readable. Example: "1234567890@g.us" -> "******7890@g.us"
func MaskGroupID(groupID string) string {
	if groupID == "" {
		return ""
	}

	if at := strings.Index(groupID, "@"); at >= 0 {
		return maskString(groupID[:at], 4) + groupID[at:]
	}
	return maskString(groupID, 4)
}

// MaskUserID masks an account identifier.
// Example: "user123456" -> "******3456"
func MaskUserID(userID string) string {
	if userID == "" {
		return ""
	}
	return maskString(userID, 4)
}

// MaskCredential fully masks a pairing credential; only its length leaks.
// The payload is a login secret, so no suffix is preserved.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	return strings.Repeat("*", len(credential))
}

// maskString masks a string showing only the last n characters.
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies masking to common logging fields.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "phone", "phone_number":
			if s, ok := v.(string); ok {
				masked[k] = MaskPhoneNumber(s)
			} else {
				masked[k] = v
			}
		case "group", "group_id", "target_group":
			if s, ok := v.(string); ok {
				masked[k] = MaskGroupID(s)
			} else {
				masked[k] = v
			}
		case "user_id", "userId":
			if s, ok := v.(string); ok {
				masked[k] = MaskUserID(s)
			} else {
				masked[k] = v
			}
		case "credential", "pairing_credential", "qr":
			if s, ok := v.(string); ok {
				masked[k] = MaskCredential(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
