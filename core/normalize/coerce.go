package normalize

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"history-forwarder/core/utils"
)

var (
	intPattern    = regexp.MustCompile(`^-?[0-9]+$`)
	numberPattern = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
)

// Coerce converts a raw value into its JSON-friendly form. The second return value is false
// when the value must be left out of the record entirely. List elements that would be left
// out are dropped from the list, and a list left empty is left out.
func Coerce(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return coerceString(v)
	case []byte:
		return coerceString(utils.ToString(v))
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, false
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if item, ok := Coerce(rv.Index(i).Interface()); ok {
				out = append(out, item)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false
	}
	return value, true
}

func coerceString(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	// zero-padded codes are identifiers, not numbers
	if strings.HasPrefix(s, "00") {
		return s, true
	}
	if intPattern.MatchString(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		// out of int64 range, a float would lose digits
		return s, true
	}
	if numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return s, true
}
