package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the ISO-8601 layout used for timestamps. Microseconds are appended only
// when non-zero.
const TimeLayout = "2006-01-02T15:04:05"

// FormatTime renders t as ISO-8601 with a numeric UTC offset.
func FormatTime(t time.Time) string {
	var sb strings.Builder
	sb.WriteString(t.Format(TimeLayout))
	if micro := t.Nanosecond() / 1000; micro != 0 {
		sb.WriteString(fmt.Sprintf(".%06d", micro))
	}
	sb.WriteString(t.Format("-07:00"))
	return sb.String()
}

// FormatFloat renders f the way encoding/json does but always keeps a fractional part
// or exponent, so that floats stay floats for the consumer.
func FormatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported float value: %v", f)
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s, nil
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return encodeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float32:
		return encodeFloat(buf, float64(val))
	case float64:
		return encodeFloat(buf, val)
	case *big.Float:
		f, _ := val.Float64()
		return encodeFloat(buf, f)
	case *big.Rat:
		f, _ := val.Float64()
		return encodeFloat(buf, f)
	case time.Time:
		return encodeString(buf, FormatTime(val))
	case *time.Time:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		return encodeString(buf, FormatTime(*val))
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Fields:
		b, err := val.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(b)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("failed to encode %T: %w", v, err)
		}
		buf.Write(b)
	}
	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	s, err := FormatFloat(f)
	if err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
