package aggregate

import (
	"context"
	"fmt"
	"time"

	"history-forwarder/core/history"
	"history-forwarder/core/normalize"
)

// Field names produced by HistoricalAttributes.
const (
	FieldCreateDate     = "historical_create_date"
	FieldLastChangeDate = "historical_last_change_date"
	FieldTotalChanges   = "historical_total_changes"
	FieldDeltaDays      = "historical_delta_days"
	FieldAverageDays    = "historical_average_days"
)

const secondsPerDay = 86400.0

// Provider returns extra fields for each of ids. Ids may be missing from the result.
type Provider func(ctx context.Context, ids []int64) (map[int64]normalize.Fields, error)

// Aggregator composes providers.
type Aggregator struct {
	providers []Provider
}

// New returns an Aggregator running providers in the given order.
func New(providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers}
}

// Compute runs every provider and merges their fields per id.
func (a *Aggregator) Compute(ctx context.Context, ids []int64) (map[int64]normalize.Fields, error) {
	results := make(map[int64]normalize.Fields, len(ids))
	if len(ids) == 0 {
		return results, nil
	}
	for i, provider := range a.providers {
		fields, err := provider(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("aggregate provider %d: %w", i, err)
		}
		for id, f := range fields {
			results[id] = results[id].Merge(f)
		}
	}
	return results, nil
}

// Attributes are the history-derived values of one entity.
type Attributes struct {
	CreationTimestamp   time.Time
	LastChangeTimestamp time.Time
	TotalChangeCount    int
	DeltaDays           float64
	AverageDays         float64
}

// Fields renders the attributes in their output order.
func (a Attributes) Fields() normalize.Fields {
	return normalize.NewFields(
		FieldCreateDate, a.CreationTimestamp,
		FieldLastChangeDate, a.LastChangeTimestamp,
		FieldTotalChanges, a.TotalChangeCount,
		FieldDeltaDays, a.DeltaDays,
		FieldAverageDays, a.AverageDays,
	)
}

// ComputeAttributes folds version records into per-entity attributes.
func ComputeAttributes(records []history.VersionRecord) map[int64]Attributes {
	out := make(map[int64]Attributes)
	for _, r := range records {
		ts := r.VersionTimestamp.UTC()
		attr, ok := out[r.EntityID]
		if !ok {
			attr = Attributes{CreationTimestamp: ts, LastChangeTimestamp: ts}
		}
		attr.TotalChangeCount++
		if ts.Before(attr.CreationTimestamp) {
			attr.CreationTimestamp = ts
		}
		if ts.After(attr.LastChangeTimestamp) {
			attr.LastChangeTimestamp = ts
		}
		out[r.EntityID] = attr
	}
	for id, attr := range out {
		attr.DeltaDays = attr.LastChangeTimestamp.Sub(attr.CreationTimestamp).Seconds() / secondsPerDay
		attr.AverageDays = attr.DeltaDays / float64(attr.TotalChangeCount)
		out[id] = attr
	}
	return out
}

// HistoricalAttributes is the provider computing Attributes from the full history of ids.
func HistoricalAttributes(source history.Source) Provider {
	return func(ctx context.Context, ids []int64) (map[int64]normalize.Fields, error) {
		records, err := source.History(ctx, ids)
		if err != nil {
			return nil, err
		}
		attrs := ComputeAttributes(records)
		out := make(map[int64]normalize.Fields, len(attrs))
		for id, attr := range attrs {
			out[id] = attr.Fields()
		}
		return out, nil
	}
}
