package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap returns a copy of metadata safe for activity records
// and log lines. Secrets are replaced wholesale, message bodies are
// dropped, and phone numbers keep only their last four digits.
// Traceability keys pass through untouched.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		switch {
		case shouldRedactKey(key):
			target[key] = RedactedValue
		case isBodyKey(key):
			target[key] = RedactedValue
		case isPhoneKey(key):
			if s, ok := value.(string); ok {
				target[key] = MaskPhone(s)
				continue
			}
			target[key] = redactSensitiveValue(value)
		default:
			target[key] = redactSensitiveValue(value)
		}
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

// MaskPhone keeps the plus prefix and the last four digits, replacing the
// rest with asterisks. Short values come back unchanged.
func MaskPhone(number string) string {
	trimmed := strings.TrimSpace(number)
	if len(trimmed) <= 4 {
		return trimmed
	}
	keep := trimmed[len(trimmed)-4:]
	if strings.HasPrefix(trimmed, "+") {
		return "+" + strings.Repeat("*", len(trimmed)-5) + keep
	}
	return strings.Repeat("*", len(trimmed)-4) + keep
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	sensitiveTokens := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"access_key",
		"credential",
		"signature",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isBodyKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "body", "message_body", "notice_body":
		return true
	default:
		return false
	}
}

func isPhoneKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "from" || key == "to" || key == "phone" {
		return true
	}
	return strings.HasSuffix(key, "_number") || strings.HasSuffix(key, "_phone")
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "business_id",
		"client_id",
		"message_id",
		"context_id",
		"provider_id",
		"provider_message_id",
		"delivery_id",
		"idempotency_key",
		"trace_id",
		"request_id",
		"route",
		"action":
		return true
	default:
		return false
	}
}
