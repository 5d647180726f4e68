package schema

import (
	"sort"

	"shelfsync/internal/store"
)

// scaffoldTypes picks the column type Scaffold gives each field.
var scaffoldTypes = map[Field]store.PropertyType{
	FieldTitle:       store.TypeTitle,
	FieldReleaseDate: store.TypeDate,
	FieldRating:      store.TypeNumber,
	FieldDescription: store.TypeRichText,
	FieldSeries:      store.TypeSelect,
	FieldContentType: store.TypeSelect,
	FieldSeasons:     store.TypeNumber,
	FieldEpisodes:    store.TypeNumber,
	FieldURL:         store.TypeURL,
	FieldCover:       store.TypeURL,
	FieldLastSynced:  store.TypeDate,
}

// Scaffold derives a column set that satisfies Validate for db. It is used
// to lay out local mirror databases; remote databases are created by hand.
func Scaffold(db Database) store.Schema {
	out := store.Schema{
		DatabaseID: store.NormalizeID(db.ID),
		Title:      db.Name,
		Properties: map[string]store.Property{},
	}
	add := func(id string, t store.PropertyType) {
		if id == "" {
			return
		}
		if _, exists := out.Properties[id]; exists {
			return
		}
		out.Properties[id] = store.Property{ID: id, Name: id, Type: t}
	}

	fields := make([]Field, 0, len(db.Properties))
	for f := range db.Properties {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	for _, f := range fields {
		add(db.Properties[f], scaffoldType(f))
	}
	for _, prop := range db.IDProperties {
		add(prop, store.TypeRichText)
	}
	return out
}

func scaffoldType(f Field) store.PropertyType {
	if t, ok := scaffoldTypes[f]; ok {
		return t
	}
	if f.IsRelation() {
		return store.TypeRelation
	}
	// Lists: genres, platforms, themes and every contributor role.
	return store.TypeMultiSelect
}
