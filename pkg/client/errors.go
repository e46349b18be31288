package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// StatusError is a non-2xx response. Payload holds the decoded error
// document keyed by attribute path; unkeyed messages go to Message.
type StatusError struct {
	Code    int
	Method  string
	Path    string
	Message string
	Payload map[string][]string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "client: <nil>"
	}
	msg := fmt.Sprintf("client: %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }

// FieldErrors returns the keyed error payload.
func (e *StatusError) FieldErrors() map[string][]string { return e.Payload }

// Is maps 404 responses onto model.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == model.ErrNotFound && e != nil && e.Code == http.StatusNotFound
}

// decodeErrorBody accepts `{"name": ["..."]}`, `{"name": "..."}`, an
// `errors` object nested at the top level and a plain `message`/`error`
// string.
func decodeErrorBody(body []byte) (string, map[string][]string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return trimmed, nil
	}

	payload := make(map[string][]string)
	var message []string
	var walk func(prefix string, value map[string]any)
	walk = func(prefix string, value map[string]any) {
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			switch v := value[key].(type) {
			case map[string]any:
				if prefix == "" && key == "errors" {
					walk("", v)
					continue
				}
				walk(path, v)
			default:
				texts := messages(v)
				if len(texts) == 0 {
					continue
				}
				if prefix == "" && (key == "message" || key == "error" || key == "detail") {
					message = append(message, texts...)
					continue
				}
				payload[path] = append(payload[path], texts...)
			}
		}
	}
	walk("", doc)

	if len(payload) == 0 {
		payload = nil
	}
	return strings.Join(message, "; "), payload
}

func messages(value any) []string {
	switch v := value.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, messages(item)...)
		}
		return out
	case nil:
	default:
		return []string{fmt.Sprint(v)}
	}
	return nil
}
