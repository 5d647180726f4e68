package schema

import (
	"fmt"
	"sort"
	"strings"

	"shelfsync/internal/catalog"
	"shelfsync/internal/merge"
	"shelfsync/internal/store"
)

// Field is a logical record attribute a database may map to a property.
type Field string

const (
	FieldTitle       Field = "title"
	FieldReleaseDate Field = "release_date"
	FieldRating      Field = "rating"
	FieldDescription Field = "description"
	FieldGenres      Field = "genres"
	FieldPlatforms   Field = "platforms"
	FieldThemes      Field = "themes"
	FieldSeries      Field = "series"
	FieldURL         Field = "url"
	FieldCover       Field = "cover"
	FieldLastSynced  Field = "last_synced"
	// FieldContentType says whether a movies record is a film or a TV show.
	FieldContentType Field = "content_type"
	FieldSeasons     Field = "seasons"
	FieldEpisodes    Field = "episodes"

	FieldDevelopers Field = "developers"
	FieldPublishers Field = "publishers"
	FieldDirectors  Field = "directors"
	FieldCast       Field = "cast"
	FieldStudios    Field = "studios"
	FieldAuthors    Field = "authors"
	FieldArtists    Field = "artists"
	FieldCreators   Field = "creators"

	FieldAlbum  Field = "album"
	FieldArtist Field = "artist"
	FieldLabel  Field = "label"
)

// contributorRoles maps contributor fields to the role they collect.
var contributorRoles = map[Field]string{
	FieldDevelopers: "Developer",
	FieldPublishers: "Publisher",
	FieldDirectors:  "Director",
	FieldCast:       "Cast",
	FieldStudios:    "Studio",
	FieldAuthors:    "Author",
	FieldArtists:    "Artist",
	FieldCreators:   "Creator",
}

// relationKinds maps relation fields to the kind of record they point at.
var relationKinds = map[Field]catalog.Kind{
	FieldAlbum:  catalog.KindAlbum,
	FieldArtist: catalog.KindArtist,
	FieldLabel:  catalog.KindLabel,
}

// expectedTypes lists the property types a field may map to. Fields absent
// here accept any writable type.
var expectedTypes = map[Field][]store.PropertyType{
	FieldTitle:       {store.TypeTitle},
	FieldRating:      {store.TypeNumber},
	FieldReleaseDate: {store.TypeDate, store.TypeRichText},
	FieldLastSynced:  {store.TypeDate},
	FieldContentType: {store.TypeSelect, store.TypeRichText},
	FieldSeasons:     {store.TypeNumber},
	FieldEpisodes:    {store.TypeNumber},
	FieldAlbum:       {store.TypeRelation},
	FieldArtist:      {store.TypeRelation},
	FieldLabel:       {store.TypeRelation},
}

var knownFields = func() map[Field]struct{} {
	set := map[Field]struct{}{}
	for _, f := range []Field{
		FieldTitle, FieldReleaseDate, FieldRating, FieldDescription, FieldGenres,
		FieldPlatforms, FieldThemes, FieldSeries, FieldURL, FieldCover, FieldLastSynced,
		FieldContentType, FieldSeasons, FieldEpisodes,
	} {
		set[f] = struct{}{}
	}
	for f := range contributorRoles {
		set[f] = struct{}{}
	}
	for f := range relationKinds {
		set[f] = struct{}{}
	}
	return set
}()

// ParseField validates a configured field name.
func ParseField(value string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := knownFields[f]; !ok {
		return "", fmt.Errorf("unknown field %q", value)
	}
	return f, nil
}

// Fields lists every known field, sorted.
func Fields() []Field {
	out := make([]Field, 0, len(knownFields))
	for f := range knownFields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RelationField returns the field that links to records of kind.
func RelationField(kind catalog.Kind) (Field, bool) {
	for f, k := range relationKinds {
		if k == kind {
			return f, true
		}
	}
	return "", false
}

// IsRelation reports whether f links to another record.
func (f Field) IsRelation() bool {
	_, ok := relationKinds[f]
	return ok
}

// Database describes one destination database and how fields map onto it.
type Database struct {
	Name string
	ID   string
	Kind catalog.Kind
	// PrimaryScheme is the external id used to match existing records.
	PrimaryScheme string
	Icon          string
	Properties    map[Field]string
	// IDProperties maps external id schemes to the properties storing them.
	IDProperties map[string]string
	Behavior     map[Field]merge.Behavior
}

// Property returns the property id mapped to f.
func (d Database) Property(f Field) (string, bool) {
	id, ok := d.Properties[f]
	return id, ok && id != ""
}

// PrimaryProperty returns the property holding the primary external id.
func (d Database) PrimaryProperty() (string, bool) {
	id, ok := d.IDProperties[d.PrimaryScheme]
	return id, ok && id != ""
}

// StoredIDs returns external ids already recorded on rec.
func (d Database) StoredIDs(rec *store.Record) map[string]string {
	out := map[string]string{}
	if rec == nil {
		return out
	}
	for scheme, prop := range d.IDProperties {
		if v := strings.TrimSpace(rec.Properties[prop].String()); v != "" {
			out[scheme] = v
		}
	}
	return out
}

// RecordKind returns the kind to resolve rec as. For a movie database the
// content type property decides between movie and tv; when it is unset the
// returned alternate is tv, to be tried after movie.
func (d Database) RecordKind(rec *store.Record) (kind, alt catalog.Kind) {
	if d.Kind != catalog.KindMovie {
		return d.Kind, ""
	}
	if prop, ok := d.Property(FieldContentType); ok && rec != nil {
		switch ParseContentType(rec.Properties[prop].String()) {
		case catalog.KindTV:
			return catalog.KindTV, ""
		case catalog.KindMovie:
			return catalog.KindMovie, ""
		}
	}
	return catalog.KindMovie, catalog.KindTV
}

// ContentType is the label stored in the content type property.
func ContentType(kind catalog.Kind) string {
	switch kind {
	case catalog.KindMovie:
		return "Movie"
	case catalog.KindTV:
		return "TV"
	default:
		return ""
	}
}

// ParseContentType reads a content type label back into a kind. Unknown
// labels return "".
func ParseContentType(label string) catalog.Kind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "movie", "film":
		return catalog.KindMovie
	case "tv", "tv show", "series", "show":
		return catalog.KindTV
	default:
		return ""
	}
}

// Policy translates field behaviors into a property-id policy.
func (d Database) Policy() (merge.Policy, error) {
	rules := make(map[string]merge.Behavior, len(d.Behavior))
	for field, behavior := range d.Behavior {
		prop, ok := d.Property(field)
		if !ok {
			return merge.Policy{}, fmt.Errorf("%s: behavior for unmapped field %s", d.Name, field)
		}
		rules[prop] = behavior
	}
	return merge.NewPolicy(rules)
}

// Target groups the databases a sync target writes to.
type Target struct {
	Name      catalog.Target
	Databases []Database
}

// Database returns the database named name (case-insensitive).
func (t Target) Database(name string) (Database, bool) {
	for _, db := range t.Databases {
		if strings.EqualFold(db.Name, strings.TrimSpace(name)) {
			return db, true
		}
	}
	return Database{}, false
}

// DatabaseForKind returns the database that stores records of kind. An
// exact kind match wins over a database that merely holds the kind.
func (t Target) DatabaseForKind(kind catalog.Kind) (Database, bool) {
	for _, db := range t.Databases {
		if db.Kind == kind {
			return db, true
		}
	}
	for _, db := range t.Databases {
		if db.Kind.Holds(kind) {
			return db, true
		}
	}
	return Database{}, false
}

// DatabaseByID returns the database with the given id.
func (t Target) DatabaseByID(id string) (Database, bool) {
	id = store.NormalizeID(id)
	for _, db := range t.Databases {
		if store.NormalizeID(db.ID) == id {
			return db, true
		}
	}
	return Database{}, false
}
