package configmodel

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// fieldErrors collects validation failures of one record so they are reported together.
type fieldErrors struct {
	prefix string
	errs   *multierror.Error
}

func newFieldErrors(prefix string) *fieldErrors {
	return &fieldErrors{prefix: prefix}
}

func (f *fieldErrors) add(err error) {
	if err == nil {
		return
	}
	if f.prefix != "" {
		err = fmt.Errorf("%s.%w", f.prefix, err)
	}
	f.errs = multierror.Append(f.errs, err)
}

func (f *fieldErrors) addf(format string, a ...interface{}) {
	f.add(fmt.Errorf(format, a...))
}

func (f *fieldErrors) err() error {
	if f.errs == nil {
		return nil
	}
	f.errs.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, e := range es {
			msgs[i] = e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return f.errs.ErrorOrNil()
}

// require reports every key that is absent from record. Null values count as present.
func (f *fieldErrors) require(record map[string]interface{}, keys ...string) {
	for _, key := range keys {
		if _, ok := record[key]; !ok {
			f.addf("%s: field required", key)
		}
	}
}

// forbidExtra reports every key of record not listed in keys, in sorted order.
// It returns true when at least one extra key was found.
func (f *fieldErrors) forbidExtra(record map[string]interface{}, keys ...string) bool {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	var extra []string
	for k := range record {
		if !allowed[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		f.addf("%s: extra inputs are not permitted", k)
	}
	return len(extra) > 0
}

// integralFloatHook refuses to truncate a float with a fractional part into an integer
// field. Whole floats, as JSON documents carry them, still decode.
func integralFloatHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("input should be a valid integer, got a number with a fractional part")
	}
	return data, nil
}

// decodeStrict decodes record into out, rejecting keys out does not declare.
// No weak typing: a string never becomes a bool or an int, and 1.5 never becomes 1.
func decodeStrict(record map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  integralFloatHook,
		ErrorUnused: true,
		ZeroFields:  true,
		Result:      out,
		TagName:     "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(record); err != nil {
		return unwrapDecodeError(err)
	}
	return nil
}

// unwrapDecodeError flattens mapstructure's aggregated error into a one-line message.
func unwrapDecodeError(err error) error {
	if de, ok := err.(*mapstructure.Error); ok {
		msgs := make([]string, 0, len(de.Errors))
		for _, e := range de.Errors {
			if strings.HasPrefix(e, "'' has invalid keys: ") {
				e = strings.TrimPrefix(e, "'' has invalid keys: ") + ": extra inputs are not permitted"
			}
			msgs = append(msgs, e)
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return err
}

// requiredString returns a non-null string value or records an error.
func (f *fieldErrors) requiredString(field string, value *string) string {
	if value == nil {
		f.addf("%s: input should be a valid string", field)
		return ""
	}
	return *value
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// toTime accepts time.Time values from drivers and text timestamps from JSON fixtures.
func toTime(field string, value interface{}, loc *time.Location) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := v.In(loc)
		return &t, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t := v.In(loc)
		return &t, nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
				t = t.In(loc)
				return &t, nil
			}
		}
		return nil, fmt.Errorf("%s: input should be a valid datetime, got '%s'", field, v)
	default:
		return nil, fmt.Errorf("%s: input should be a valid datetime, got %T", field, value)
	}
}
