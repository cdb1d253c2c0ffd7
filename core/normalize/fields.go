package normalize

import (
	"bytes"
	"encoding/json"
)

// Field is a single key/value pair of an ordered record.
type Field struct {
	Key   string
	Value any
}

// Fields is an insertion-ordered set of fields. Keys are unique.
type Fields []Field

// NewFields builds Fields from alternating key/value arguments.
func NewFields(kv ...any) Fields {
	f := make(Fields, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		f = f.Set(key, kv[i+1])
	}
	return f
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// Set stores value under key. An existing key keeps its position.
func (f Fields) Set(key string, value any) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

// Merge sets every field of other onto f, in other's order.
func (f Fields) Merge(other Fields) Fields {
	for _, field := range other {
		f = f.Set(field.Key, field.Value)
	}
	return f
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// MarshalJSON writes the fields as a JSON object preserving order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeValue(&buf, field.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
