package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// Validate checks every property id the database mapping references against
// the live destination schema. Any mismatch is an ErrSchema so the run stops
// before fetching or writing anything.
func Validate(ctx context.Context, st store.Store, db Database) (store.Schema, error) {
	live, err := st.Describe(ctx, db.ID)
	if err != nil {
		return store.Schema{}, err
	}
	var problems []string
	if _, ok := db.Property(FieldTitle); !ok {
		problems = append(problems, "title field is not mapped")
	}
	for field, prop := range db.Properties {
		if prop == "" {
			continue
		}
		p, ok := live.Property(prop)
		if !ok {
			problems = append(problems, fmt.Sprintf("field %s: property %q not in database", field, prop))
			continue
		}
		if allowed, ok := expectedTypes[field]; ok && !containsType(allowed, p.Type) {
			problems = append(problems, fmt.Sprintf("field %s: property %q is %s, want %s", field, p.Name, p.Type, joinTypes(allowed)))
		}
		if field != FieldLastSynced && !p.Type.Writable() {
			problems = append(problems, fmt.Sprintf("field %s: property %q is read-only", field, p.Name))
		}
	}
	for scheme, prop := range db.IDProperties {
		p, ok := live.Property(prop)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s id: property %q not in database", scheme, prop))
			continue
		}
		if !p.Type.Writable() || p.Type == store.TypeRelation {
			problems = append(problems, fmt.Sprintf("%s id: property %q has unusable type %s", scheme, p.Name, p.Type))
		}
	}
	if _, ok := db.PrimaryProperty(); !ok {
		problems = append(problems, fmt.Sprintf("primary id scheme %q has no property", db.PrimaryScheme))
	}
	for field := range db.Behavior {
		if _, ok := db.Property(field); !ok {
			problems = append(problems, fmt.Sprintf("behavior references unmapped field %s", field))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return store.Schema{}, services.Wrap(services.ErrSchema, "schema", "validate "+db.Name, strings.Join(problems, "; "), nil)
	}
	return live, nil
}

func containsType(list []store.PropertyType, t store.PropertyType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func joinTypes(list []store.PropertyType) string {
	parts := make([]string, len(list))
	for i, t := range list {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}
