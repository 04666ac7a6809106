package tracker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const bodyLimit = 2000

// APIError is a non-success tracker response. Error renders the diagnostic
// text shown to users verbatim.
type APIError struct {
	Status      int
	Messages    []string
	FieldErrors map[string]string
	// Body holds the raw text when the response was not a JSON object.
	Body string
}

func (e *APIError) Error() string {
	lines := []string{fmt.Sprintf("HTTP %d", e.Status)}
	if len(e.Messages) > 0 {
		lines = append(lines, "errorMessages:")
		for _, m := range e.Messages {
			lines = append(lines, "  - "+m)
		}
	}
	if len(e.FieldErrors) > 0 {
		lines = append(lines, "field errors:")
		keys := make([]string, 0, len(e.FieldErrors))
		for k := range e.FieldErrors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  - %s: %s", k, e.FieldErrors[k]))
		}
	}
	if e.Body != "" {
		lines = append(lines, "body (text):", truncateRunes(e.Body, bodyLimit))
	}
	return strings.Join(lines, "\n")
}

// NetworkError wraps transport failures (DNS, connect, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "Сеть/подключение: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is a success status with a body that could not be parsed.
type DecodeError struct {
	Status int
	Body   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%d %s, но не удалось разобрать ответ: %s", e.Status, http.StatusText(e.Status), truncateRunes(e.Body, 500))
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return apiErr
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		apiErr.Body = text
		return apiErr
	}

	var messages []any
	if raw, ok := obj["errorMessages"]; ok && json.Unmarshal(raw, &messages) == nil {
		for _, m := range messages {
			apiErr.Messages = append(apiErr.Messages, stringify(m))
		}
	}
	var fieldErrs map[string]any
	if raw, ok := obj["errors"]; ok && json.Unmarshal(raw, &fieldErrs) == nil && len(fieldErrs) > 0 {
		apiErr.FieldErrors = make(map[string]string, len(fieldErrs))
		for k, v := range fieldErrs {
			apiErr.FieldErrors[k] = stringify(v)
		}
	}
	return apiErr
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
