// Package query validates and normalises evidence queries.
package query

import (
	"fmt"

	"atlas-g/protocol/pkg/evidence"
)

const (
	// DefaultLimit is the number of records returned when Limit is zero.
	DefaultLimit = 100

	// MaxLimit is the largest page a single query may request.
	MaxLimit = 10000
)

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// Validate returns a *evidence.QueryError describing the first invalid field.
func Validate(q *evidence.Query) error {
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.Outcome != "" && !q.Outcome.Valid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid outcome: %s", q.Outcome))
	}
	if q.Category != "" && !q.Category.Valid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid category: %s", q.Category))
	}
	if q.Decision != "" && !q.Decision.Valid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid decision: %s", q.Decision))
	}
	return nil
}

// ApplyDefaults fills in the default limit and sort order.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}
