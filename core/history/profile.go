package history

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidProfile is returned when an entity profile cannot be used.
var ErrInvalidProfile = errors.New("invalid entity profile")

// DefaultTimestampField is the aggregate that feeds the record timestamp.
const DefaultTimestampField = "historical_last_change_date"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns maps the logical history columns onto the physical schema.
type Columns struct {
	// ID is the entity primary key column, present in both tables.
	ID string `mapstructure:"id"`
	// Date is the version timestamp column of the history table.
	Date string `mapstructure:"date"`
	// Type is the change marker column of the history table.
	Type string `mapstructure:"type"`
}

// Profile describes one tracked entity type.
type Profile struct {
	// Name is the entity type tag, e.g. "community".
	Name string `mapstructure:"name"`
	// Table is the live table.
	Table string `mapstructure:"table"`
	// HistoryTable is the version table.
	HistoryTable string `mapstructure:"history_table"`
	// Fields is the ordered projection of live columns sent downstream.
	Fields []string `mapstructure:"fields"`
	// FieldMap renames fields on output.
	FieldMap map[string]string `mapstructure:"field_map"`
	// TimestampField names the field used as the record timestamp.
	TimestampField string `mapstructure:"timestamp_field"`
	// Search is the backend search prefix identifying this entity type's events.
	Search string `mapstructure:"search"`
	// Columns overrides the default history column names.
	Columns Columns `mapstructure:"columns"`
}

// WithDefaults fills in the django-simple-history defaults.
func (p Profile) WithDefaults() Profile {
	if p.Columns.ID == "" {
		p.Columns.ID = "id"
	}
	if p.Columns.Date == "" {
		p.Columns.Date = "history_date"
	}
	if p.Columns.Type == "" {
		p.Columns.Type = "history_type"
	}
	if p.TimestampField == "" {
		p.TimestampField = DefaultTimestampField
	}
	if p.Search == "" && p.Name != "" {
		p.Search = "model=" + p.Name
	}
	return p
}

// Validate checks that every identifier is usable in SQL.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	idents := map[string]string{
		"table":         p.Table,
		"history_table": p.HistoryTable,
		"columns.id":    p.Columns.ID,
		"columns.date":  p.Columns.Date,
		"columns.type":  p.Columns.Type,
	}
	for key, value := range idents {
		if !identifierPattern.MatchString(value) {
			return fmt.Errorf("%w: %s %s=%q", ErrInvalidProfile, p.Name, key, value)
		}
	}
	for _, field := range p.Fields {
		if !identifierPattern.MatchString(field) {
			return fmt.Errorf("%w: %s field %q", ErrInvalidProfile, p.Name, field)
		}
	}
	return nil
}

// projection returns the configured fields without the primary key.
func (p Profile) projection() []string {
	out := make([]string, 0, len(p.Fields))
	for _, field := range p.Fields {
		if field == "pk" || field == p.Columns.ID {
			continue
		}
		out = append(out, field)
	}
	return out
}
