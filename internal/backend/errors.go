package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownErrorMessage is used when the backend error carries no readable detail
const UnknownErrorMessage = "Erro desconhecido"

// APIError is a non-2xx response from the clinic backend
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Describe includes the request line, for logs
func (e *APIError) Describe() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// ExtractDetail reads the human message out of an error body. Recognized
// shapes:
//
//	{"detail": "text"}
//	{"detail": [{"loc": [...], "msg": "text"}, ...]}
//	{"detail": {"msg": "text"}} or {"detail": {"message": "text"}}
//	{"message": "text"} or {"error": "text"}
//
// Anything else yields UnknownErrorMessage.
func ExtractDetail(body []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return UnknownErrorMessage
	}

	if raw, ok := envelope["detail"]; ok {
		if msg := detailMessage(raw); msg != "" {
			return msg
		}
	}
	for _, key := range []string{"message", "error"} {
		if raw, ok := envelope[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return UnknownErrorMessage
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func detailMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}

	var items []validationItem
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if field := locField(it.Loc); field != "" {
				msgs = append(msgs, field+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Msg != "" {
			return obj.Msg
		}
		return obj.Message
	}
	return ""
}

// locField returns the last string element of a validation location, which
// names the offending field: ["body", "phone"] -> "phone"
func locField(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" {
			return s
		}
	}
	return ""
}
