package backend

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// APIError is a client error (4xx other than 401, 403 and 404) reported by
// the backend, typically a validation failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.StatusCode)
	}
	return e.Message
}

// errorMessage extracts a human readable message from a Spring error body.
// Field validation errors are joined in field order.
func errorMessage(data []byte) string {
	var body struct {
		Message string            `json:"message"`
		Error   string            `json:"error"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if len(body.Errors) > 0 {
		fields := make([]string, 0, len(body.Errors))
		for f := range body.Errors {
			fields = append(fields, f)
		}
		slices.Sort(fields)
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, body.Errors[f])
		}
		return strings.Join(msgs, ", ")
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
