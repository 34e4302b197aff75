package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap masks values whose keys look like secrets. Identifier
// keys used for correlation are kept as is.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
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

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isCorrelationKey(key) {
		return false
	}
	for _, token := range []string{"password", "secret", "token", "authorization", "signature", "credential"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isCorrelationKey(key string) bool {
	switch key {
	case "user_id", "delivery_id", "event_kind", "signature_scheme", "error_text_code":
		return true
	default:
		return false
	}
}
