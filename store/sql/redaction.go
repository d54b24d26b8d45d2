package sqlstore

import "strings"

const redactedValue = "[REDACTED]"

// sensitiveKeyTokens flags credential-bearing keys anywhere in a nested
// payload. Matching is substring based so provider-prefixed variants
// (twilio_auth_token, x_gateway_api_key) are caught too.
var sensitiveKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"signature",
}

// RedactMetadata returns a copy of metadata safe to persist in the audit
// trail. Activity entries carry raw webhook parameters and gateway
// responses, which can include auth tokens and request signatures; any
// key that looks credential-bearing is masked before the row is written.
// Phone numbers and routing fields pass through, the relay depends on
// them for traceability.
func RedactMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = redactEntry(key, value)
	}
	return out
}

func redactEntry(key string, value any) any {
	if isSensitiveKey(key) {
		return redactedValue
	}
	switch typed := value.(type) {
	case map[string]any:
		nested := make(map[string]any, len(typed))
		for k, v := range typed {
			nested[k] = redactEntry(k, v)
		}
		return nested
	case map[string]string:
		nested := make(map[string]string, len(typed))
		for k, v := range typed {
			if isSensitiveKey(k) {
				nested[k] = redactedValue
			} else {
				nested[k] = v
			}
		}
		return nested
	case []any:
		items := make([]any, len(typed))
		for i := range typed {
			items[i] = redactEntry("", typed[i])
		}
		return items
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}
