package audit

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

// Entry is an immutable audit record. Once appended it is never edited or deleted.
type Entry struct {
	ID         string    `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	TargetID   string    `db:"target_id" json:"target_id"`
	TargetType string    `db:"target_type" json:"target_type"`
	Details    Details   `db:"details" json:"details,omitempty"`
	AdminID    string    `db:"admin_id" json:"admin_id"`
	AdminRole  rbac.Role `db:"admin_role" json:"admin_role"`
	Timestamp  time.Time `db:"created_at" json:"timestamp"`
}

// NewEntry is what callers supply to Append; id and timestamp are assigned at write time
type NewEntry struct {
	Action     string
	TargetID   string
	TargetType string
	Details    Details
	AdminID    string
	AdminRole  rbac.Role
}

// Details holds free-form context of an audited action (reason, amounts, previous state)
type Details map[string]any

// Value implements driver.Valuer
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner
func (d *Details) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("audit: unsupported details type")
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, d)
}

func (d Details) clone() Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Filter selects audit entries. Zero-valued fields match everything.
// From and To are inclusive.
type Filter struct {
	Action     string
	AdminID    string
	TargetType string
	From       *time.Time
	To         *time.Time
}

// Matches is the single definition of filter semantics; the SQL builder mirrors it.
func (f Filter) Matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.AdminID != "" && e.AdminID != f.AdminID {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// Page is one page of query results
type Page struct {
	Entries  []Entry `json:"entries"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Source   string  `json:"source"`
}

const (
	SourceDurable  = "durable"
	SourceFallback = "fallback"
)

// sortNewestFirst orders by timestamp, then id, both descending
func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
}
