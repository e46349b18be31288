package fieldtypes

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// IsEmpty reports whether value counts as "not provided": nil, blank
// strings, and empty lists or maps. False and zero are values.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Text formats value for display.
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}

// Number converts JSON numbers, Go numerics and numeric strings to float64.
func Number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// ID converts an object reference value to an int id.
func ID(value any) (int, bool) {
	f, ok := Number(value)
	if !ok || f != float64(int(f)) || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// Bool converts booleans and "true"/"false" strings.
func Bool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// Strings converts a list value to its string members.
func Strings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case string:
		return []string{v}, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Date parses a date value: time.Time, RFC 3339, or YYYY-MM-DD. The backend
// also wraps dates as {"$date": <millis>}.
func Date(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, true
			}
		}
	case map[string]any:
		if millis, ok := Number(v["$date"]); ok {
			return time.UnixMilli(int64(millis)).UTC(), true
		}
	}
	return time.Time{}, false
}

// Location is a geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParseLocation reads {"lat": .., "lng": ..} maps and Location values.
func ParseLocation(value any) (Location, bool) {
	switch v := value.(type) {
	case Location:
		return v, true
	case map[string]any:
		lat, okLat := Number(v["lat"])
		lng, okLng := Number(v["lng"])
		return Location{Lat: lat, Lng: lng}, okLat && okLng
	}
	return Location{}, false
}
