package storage

import (
	"sort"
	"strings"
	"time"

	"atlas-g/protocol/pkg/evidence"
)

// matches reports whether record satisfies the filters of query.
// Paging fields are ignored.
func matches(record *evidence.TurnRecord, query *evidence.Query) bool {
	if query.StartTime != nil && record.StartedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.StartedAt.After(*query.EndTime) {
		return false
	}
	if query.SessionID != "" && record.SessionID != query.SessionID {
		return false
	}
	if query.Outcome != "" && record.Outcome != query.Outcome {
		return false
	}
	if query.Category != "" && record.Category != query.Category {
		return false
	}
	if query.Decision != "" && record.Decision != query.Decision {
		return false
	}
	if len(query.IDs) > 0 {
		found := false
		for _, id := range query.IDs {
			if id == record.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortRecords orders records by StartedAt, breaking ties by ID.
func sortRecords(records []*evidence.TurnRecord, order string) {
	asc := strings.EqualFold(order, "asc")
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			if asc {
				return a.StartedAt.Before(b.StartedAt)
			}
			return a.StartedAt.After(b.StartedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

// buildWhereClause returns the SQL conditions (without WHERE) and arguments
// for the filters of query.
func buildWhereClause(query *evidence.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, query.SessionID)
	}
	if query.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(query.Outcome))
	}
	if query.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(query.Category))
	}
	if query.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, string(query.Decision))
	}
	if len(query.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(query.IDs)), ",")
		conditions = append(conditions, "id IN ("+placeholders+")")
		for _, id := range query.IDs {
			args = append(args, id)
		}
	}

	return strings.Join(conditions, " AND "), args
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
