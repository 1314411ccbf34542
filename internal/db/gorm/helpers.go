package gorm

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxPaginationLimit is the maximum allowed limit for pagination queries.
const MaxPaginationLimit = 1000

// ParseLimitParamWithMax parses the "limit" query parameter with a maximum cap.
// If maxLimit is 0, uses MaxPaginationLimit.
func ParseLimitParamWithMax(r *http.Request, defaultLimit, maxLimit int) int {
	return ParseIntParamWithMax(r, "limit", defaultLimit, maxLimit)
}

// ParseIntParamWithMax parses a positive integer query parameter, capped at
// maxValue (MaxPaginationLimit when 0).
func ParseIntParamWithMax(r *http.Request, name string, def, maxValue int) int {
	if maxValue <= 0 {
		maxValue = MaxPaginationLimit
	}
	return min(parsePositiveParam(r, name, def), maxValue)
}

func parsePositiveParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

// isNotFound reports whether err is gorm's record-not-found error.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// parseStoredTime reads a timestamp written by setCreated, falling back to
// the epoch column when the text form is unreadable.
func parseStoredTime(text string, epochMillis int64) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t.UTC()
	}
	return time.UnixMilli(epochMillis).UTC()
}

// upsertOn builds an ON CONFLICT clause that replaces every non-key column.
func upsertOn(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: cols, UpdateAll: true}
}
