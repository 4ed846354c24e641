package errors

import (
	"encoding/json"
	"strings"
)

// ErrorMessage is the error payload the provider attaches to non-2xx
// responses. The trainings API reports either {"detail": ...} or
// {"title": ..., "detail": ...}.
type ErrorMessage struct {
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail"`
	Status int    `json:"status,omitempty"`
}

func (e ErrorMessage) String() string {
	parts := make([]string, 0, 2)
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

// Parse decodes a provider error payload. The boolean reports whether
// the body carried a recognizable message.
func Parse(body []byte) (ErrorMessage, bool) {
	var em ErrorMessage
	if err := json.Unmarshal(body, &em); err != nil {
		return ErrorMessage{}, false
	}
	return em, em.Detail != "" || em.Title != ""
}
