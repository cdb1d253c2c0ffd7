package normalize

import (
	"fmt"
	"time"

	"history-forwarder/core/utils"
)

const (
	// KeyTimestamp is the first key of every record.
	KeyTimestamp = "timestamp"
	// KeyPK is the second key of every record.
	KeyPK = "pk"
)

// Record is one canonical payload ready to be written to a sink.
type Record struct {
	// EntityID is the primary key of the entity.
	EntityID int64
	// Timestamp is the value of the configured timestamp field. It is what the ledger stores.
	Timestamp time.Time
	// Fields holds the ordered payload.
	Fields Fields
}

// MarshalJSON renders the record payload.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Fields.MarshalJSON()
}

// Normalizer merges projected fields with aggregates and coerces the result.
type Normalizer struct {
	// TimestampField names the field copied into the leading `timestamp` key.
	TimestampField string
	// FieldMap renames fields on output. Unmapped fields keep their name.
	FieldMap map[string]string
}

// BuildRecord merges base and aggregate fields and returns the canonical record.
// The timestamp field must resolve to a time.Time and the `pk` field to an integer.
func (n *Normalizer) BuildRecord(base, aggregate Fields) (*Record, error) {
	item := base.Clone().Merge(aggregate)

	rawPK, ok := item.Get(KeyPK)
	if !ok || rawPK == nil {
		return nil, fmt.Errorf("record has no %q field", KeyPK)
	}
	pk := utils.ToInt64(rawPK)

	rawTS, ok := item.Get(n.TimestampField)
	if !ok {
		return nil, fmt.Errorf("record %d has no timestamp field %q", pk, n.TimestampField)
	}
	ts, ok := asTime(rawTS)
	if !ok {
		return nil, fmt.Errorf("record %d timestamp field %q is %T, not a time", pk, n.TimestampField, rawTS)
	}

	data := make(Fields, 0, len(item)+2)
	data = data.Set(KeyTimestamp, ts)
	data = data.Set(KeyPK, pk)

	for _, field := range item {
		name := field.Key
		if mapped, ok := n.FieldMap[name]; ok && mapped != "" {
			name = mapped
		}
		if name == KeyPK {
			continue
		}
		value, keep := Coerce(field.Value)
		if !keep {
			continue
		}
		data = data.Set(name, value)
	}

	return &Record{EntityID: pk, Timestamp: ts, Fields: data}, nil
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
