package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"shelfsync/internal/catalog"
	"shelfsync/internal/merge"
	"shelfsync/internal/store"
)

// MaxTextLength caps long text values such as descriptions.
const MaxTextLength = 2000

var (
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	yearMonthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Map converts a fetched record into destination properties for db.
// Every mapped scalar field is emitted, empty when the record lacks it, so a
// default behavior can clear stale values. Relation fields are emitted only
// when relations supplies them. Values are coerced to the live property types.
func Map(db Database, live store.Schema, rec *catalog.Record, relations map[Field][]string) merge.Properties {
	out := merge.Properties{}
	set := func(prop string, v merge.Value) {
		if p, ok := live.Property(prop); ok && p.Type.Writable() {
			out[prop] = Coerce(p.Type, v)
		}
	}
	for field, prop := range db.Properties {
		if prop == "" || field == FieldLastSynced {
			continue
		}
		if field.IsRelation() {
			if ids, ok := relations[field]; ok {
				set(prop, merge.Relation(ids...))
			}
			continue
		}
		set(prop, fieldValue(field, rec))
	}
	for scheme, prop := range db.IDProperties {
		if id := rec.ExternalID(scheme); id != "" {
			set(prop, merge.Text(id))
		}
	}
	return out
}

func fieldValue(field Field, rec *catalog.Record) merge.Value {
	if role, ok := contributorRoles[field]; ok {
		return merge.List(catalog.DedupeFold(rec.ContributorsWithRole(role))...)
	}
	switch field {
	case FieldTitle:
		return merge.Text(strings.TrimSpace(rec.Title))
	case FieldReleaseDate:
		return merge.Date(NormalizeDate(rec.ReleaseDate))
	case FieldRating:
		if rec.Rating == nil {
			return merge.Value{Kind: merge.KindNumber}
		}
		return merge.Number(*rec.Rating)
	case FieldDescription:
		return merge.Text(Truncate(rec.Description, MaxTextLength))
	case FieldGenres:
		return merge.List(rec.Genres...)
	case FieldPlatforms:
		return merge.List(rec.Platforms...)
	case FieldThemes:
		return merge.List(rec.Themes...)
	case FieldSeries:
		return merge.Text(rec.Series)
	case FieldContentType:
		return merge.Text(ContentType(rec.Kind))
	case FieldSeasons:
		return count(rec.Seasons)
	case FieldEpisodes:
		return count(rec.Episodes)
	case FieldURL:
		return merge.Text(rec.URL)
	case FieldCover:
		return merge.Text(rec.CoverURL)
	default:
		return merge.Value{}
	}
}

func count(n int) merge.Value {
	if n <= 0 {
		return merge.Value{Kind: merge.KindNumber}
	}
	return merge.Number(float64(n))
}

// Coerce reshapes v to fit a property of type t.
func Coerce(t store.PropertyType, v merge.Value) merge.Value {
	want := t.ValueKind()
	if want == merge.KindList {
		return coerceList(v)
	}
	if v.Kind == want {
		return v
	}
	if v.IsEmpty() {
		return merge.Value{Kind: want}
	}
	switch want {
	case merge.KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return merge.Value{Kind: merge.KindNumber}
		}
		return merge.Number(n)
	case merge.KindDate:
		return merge.Date(NormalizeDate(v.String()))
	case merge.KindText:
		if t == store.TypeSelect && len(v.Items) > 0 {
			return merge.Text(v.Items[0])
		}
		return merge.Text(v.String())
	case merge.KindBool:
		b, _ := strconv.ParseBool(v.String())
		return merge.Bool(b)
	default:
		return v
	}
}

// coerceList cleans options the way the store will save them, so diffs run
// against stored values.
func coerceList(v merge.Value) merge.Value {
	var items []string
	switch {
	case v.Kind == merge.KindList || v.Kind == merge.KindRelation:
		items = v.Items
	case !v.IsEmpty():
		items = []string{v.String()}
	}
	cleaned := store.CleanOptions(items)
	if len(cleaned) == 0 {
		return merge.Value{Kind: merge.KindList}
	}
	return merge.List(cleaned...)
}

// NormalizeDate expands partial dates ("2004" or "2004-06") to a full
// YYYY-MM-DD. Unrecognized values pass through trimmed.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case yearPattern.MatchString(value):
		return value + "-01-01"
	case yearMonthPattern.MatchString(value):
		return value + "-01"
	default:
		return value
	}
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

// SyncedValue is the last-synced marker written after a successful sync.
func SyncedValue(now time.Time) merge.Value {
	return merge.Date(now.UTC().Format(time.RFC3339))
}

// LastSynced reads the last-synced marker from rec.
func LastSynced(db Database, rec *store.Record) (time.Time, bool) {
	prop, ok := db.Property(FieldLastSynced)
	if !ok || rec == nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(rec.Properties[prop].Text)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-07:00", time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
