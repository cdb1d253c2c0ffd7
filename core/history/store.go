package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"history-forwarder/core/database"
	"history-forwarder/core/normalize"
	"history-forwarder/core/utils"

	"gorm.io/gorm"
)

// chunkSize bounds the number of ids in a single IN clause.
const chunkSize = 500

// GormStore implements Store over the live and history tables of one profile.
type GormStore struct {
	db      *gorm.DB
	profile Profile
}

// NewGormStore validates the profile and returns a store bound to it.
func NewGormStore(db *gorm.DB, profile Profile) (*GormStore, error) {
	profile = profile.WithDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &GormStore{db: db, profile: profile}, nil
}

// Profile returns the profile with defaults applied.
func (s *GormStore) Profile() Profile {
	return s.profile
}

func (s *GormStore) quote(name string) string {
	return s.db.Statement.Quote(name)
}

func (s *GormStore) versionSelect() string {
	c := s.profile.Columns
	return fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		s.quote(c.ID), s.quote(c.Date), s.quote(c.Type), s.quote(s.profile.HistoryTable))
}

// ChangedSince returns every version record strictly newer than lower, oldest first.
func (s *GormStore) ChangedSince(ctx context.Context, lower time.Time) ([]VersionRecord, error) {
	date := s.quote(s.profile.Columns.Date)
	query := fmt.Sprintf("%s WHERE %s > ? ORDER BY %s", s.versionSelect(), date, date)

	rows, err := s.db.WithContext(ctx).Raw(query, lower.UTC()).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query changes of %s: %w", s.profile.Name, err)
	}
	defer rows.Close()

	return scanVersions(rows)
}

// History returns the full version history of ids, oldest first within each chunk.
func (s *GormStore) History(ctx context.Context, ids []int64) ([]VersionRecord, error) {
	var out []VersionRecord
	id := s.quote(s.profile.Columns.ID)
	date := s.quote(s.profile.Columns.Date)
	query := fmt.Sprintf("%s WHERE %s IN ? ORDER BY %s", s.versionSelect(), id, date)

	for _, chunk := range chunk(ids) {
		rows, err := s.db.WithContext(ctx).Raw(query, chunk).Rows()
		if err != nil {
			return nil, fmt.Errorf("failed to query history of %s: %w", s.profile.Name, err)
		}
		records, err := scanVersions(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// BaseValues projects `pk` plus the configured fields for every live id.
func (s *GormStore) BaseValues(ctx context.Context, ids []int64) ([]normalize.Fields, error) {
	id := s.quote(s.profile.Columns.ID)
	cols := []string{id + " AS pk"}
	for _, field := range s.profile.projection() {
		cols = append(cols, s.quote(field))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN ? ORDER BY %s",
		strings.Join(cols, ", "), s.quote(s.profile.Table), id, id)

	var out []normalize.Fields
	for _, chunk := range chunk(ids) {
		rows, err := s.db.WithContext(ctx).Raw(query, chunk).Rows()
		if err != nil {
			return nil, fmt.Errorf("failed to query %s values: %w", s.profile.Name, err)
		}
		values, err := scanFields(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

// Verify checks that both tables expose the configured columns.
func (s *GormStore) Verify(ctx context.Context) error {
	c := s.profile.Columns
	live := append([]string{c.ID}, s.profile.projection()...)
	if err := s.requireColumns(ctx, s.profile.Table, live); err != nil {
		return err
	}
	return s.requireColumns(ctx, s.profile.HistoryTable, []string{c.ID, c.Date, c.Type})
}

func (s *GormStore) requireColumns(ctx context.Context, table string, want []string) error {
	columns, err := database.GetTableColumns(s.db.WithContext(ctx), table)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: table %s not found", ErrInvalidProfile, table)
	}
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col.Field] = struct{}{}
	}
	var missing []string
	for _, name := range want {
		if _, ok := present[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: table %s is missing columns %v", ErrInvalidProfile, table, missing)
	}
	return nil
}

func scanVersions(rows *sql.Rows) ([]VersionRecord, error) {
	var out []VersionRecord
	for rows.Next() {
		var rawID, rawDate, rawKind any
		if err := rows.Scan(&rawID, &rawDate, &rawKind); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		ts, err := utils.ToTime(rawDate)
		if err != nil {
			return nil, fmt.Errorf("version of %v: %w", rawID, err)
		}
		out = append(out, VersionRecord{
			EntityID:         utils.ToInt64(rawID),
			VersionTimestamp: ts,
			ChangeKind:       ChangeKind(strings.TrimSpace(utils.ToString(rawKind))),
		})
	}
	return out, rows.Err()
}

func scanFields(rows *sql.Rows) ([]normalize.Fields, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []normalize.Fields
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		fields := make(normalize.Fields, 0, len(names))
		for i, name := range names {
			value := values[i]
			if name == normalize.KeyPK {
				value = utils.ToInt64(value)
			}
			fields = fields.Set(name, value)
		}
		out = append(out, fields)
	}
	return out, rows.Err()
}

func chunk(ids []int64) [][]int64 {
	var out [][]int64
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
