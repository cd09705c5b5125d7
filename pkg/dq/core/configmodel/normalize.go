// Package configmodel validates raw job and task configuration records and turns them
// into the typed models of pkg/dq/core/domain/model. Every record is normalized first:
// strings are trimmed and empty strings become null, in lists and nested objects too.
package configmodel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize returns a copy of record with strings trimmed and empty strings replaced by nil.
// Strings inside lists are treated the same way. Nested objects get trimmed keys and
// normalized string values.
func Normalize(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for key, value := range record {
		switch v := value.(type) {
		case string:
			out[key] = emptyToNil(v)
		case []interface{}:
			items := make([]interface{}, len(v))
			for i, item := range v {
				if s, ok := item.(string); ok {
					items[i] = emptyToNil(s)
				} else {
					items[i] = item
				}
			}
			out[key] = items
		case []string:
			items := make([]interface{}, len(v))
			for i, item := range v {
				items[i] = emptyToNil(item)
			}
			out[key] = items
		case map[string]interface{}:
			nested := make(map[string]interface{}, len(v))
			for k, nv := range v {
				if s, ok := nv.(string); ok {
					nested[strings.TrimSpace(k)] = emptyToNil(s)
				} else {
					nested[strings.TrimSpace(k)] = nv
				}
			}
			out[key] = nested
		default:
			out[key] = value
		}
	}
	return out
}

func emptyToNil(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

// asObject returns a JSON object field as a map. JSON columns may arrive from the driver
// as text or bytes, in which case they are decoded.
func asObject(field string, value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case string:
		return decodeObject(field, []byte(v))
	case []byte:
		return decodeObject(field, v)
	case nil:
		return nil, fmt.Errorf("%s: field required", field)
	default:
		return nil, fmt.Errorf("%s: input should be a valid dictionary, got %T", field, value)
	}
}

func decodeObject(field string, raw []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: input should be a valid dictionary: %v", field, err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
