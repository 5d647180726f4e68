package store

import (
	"context"
	"time"

	"shelfsync/internal/merge"
)

// PropertyType is the destination column type.
type PropertyType string

const (
	TypeTitle          PropertyType = "title"
	TypeRichText       PropertyType = "rich_text"
	TypeNumber         PropertyType = "number"
	TypeDate           PropertyType = "date"
	TypeSelect         PropertyType = "select"
	TypeMultiSelect    PropertyType = "multi_select"
	TypeURL            PropertyType = "url"
	TypeRelation       PropertyType = "relation"
	TypeCheckbox       PropertyType = "checkbox"
	TypeLastEditedTime PropertyType = "last_edited_time"
	TypeCreatedTime    PropertyType = "created_time"
)

// Writable reports whether values of t can be set by the sync.
func (t PropertyType) Writable() bool {
	switch t {
	case TypeLastEditedTime, TypeCreatedTime, "":
		return false
	default:
		return true
	}
}

// ValueKind returns the merge kind used to carry values of t.
func (t PropertyType) ValueKind() merge.Kind {
	switch t {
	case TypeNumber:
		return merge.KindNumber
	case TypeDate, TypeLastEditedTime, TypeCreatedTime:
		return merge.KindDate
	case TypeMultiSelect:
		return merge.KindList
	case TypeRelation:
		return merge.KindRelation
	case TypeCheckbox:
		return merge.KindBool
	default:
		return merge.KindText
	}
}

// Property describes one database column. ID is stable across renames.
type Property struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Type PropertyType `json:"type"`
}

// Schema is a database's column set keyed by property id.
type Schema struct {
	DatabaseID string              `json:"database_id"`
	Title      string              `json:"title"`
	Properties map[string]Property `json:"properties"`
}

// Property returns the column with the given id.
func (s Schema) Property(id string) (Property, bool) {
	p, ok := s.Properties[id]
	return p, ok
}

// Record is one stored page.
type Record struct {
	ID             string           `json:"id"`
	DatabaseID     string           `json:"database_id"`
	Properties     merge.Properties `json:"properties"`
	CreatedTime    time.Time        `json:"created_time"`
	LastEditedTime time.Time        `json:"last_edited_time"`
	URL            string           `json:"url,omitempty"`
}

// Decoration carries page chrome that lives outside the property set.
type Decoration struct {
	CoverURL string
	Icon     string
}

// IsZero reports whether no decoration is requested.
func (d Decoration) IsZero() bool {
	return d.CoverURL == "" && d.Icon == ""
}

// Match selects records whose property equals a text value.
type Match struct {
	Property string
	Value    string
}

// Filter narrows a Query. Zero fields do not filter.
type Filter struct {
	// EmptyProperty selects records with no value in this property.
	EmptyProperty string
	CreatedAfter  time.Time
	EditedAfter   time.Time
	Equals        *Match
	// Limit caps results; zero means no cap.
	Limit int
	// SortByEdited returns the most recently edited records first.
	SortByEdited bool
}

// Store is the destination database. Implementations must be safe for
// concurrent use.
type Store interface {
	Describe(ctx context.Context, databaseID string) (Schema, error)
	Query(ctx context.Context, databaseID string, filter Filter) ([]Record, error)
	// Get returns the record or an error wrapping services.ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	Create(ctx context.Context, databaseID string, props merge.Properties, deco Decoration) (string, error)
	Update(ctx context.Context, id string, props merge.Properties, deco Decoration) error
}
