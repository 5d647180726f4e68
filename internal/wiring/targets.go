package wiring

import (
	"fmt"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/merge"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// Targets converts the configured database mappings into schema targets.
// Field and behavior names are checked here because config cannot import
// the schema package.
func Targets(cfg *config.Config) ([]schema.Target, error) {
	var out []schema.Target
	for _, name := range cfg.TargetNames() {
		target, err := catalog.ParseTarget(name)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "config", "targets", "", err)
		}
		st := schema.Target{Name: target}
		section := cfg.Targets[name]
		for _, dbName := range section.DatabaseNames() {
			db, err := database(dbName, section.Databases[dbName])
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "config",
					fmt.Sprintf("targets.%s.databases.%s", name, dbName), "", err)
			}
			st.Databases = append(st.Databases, db)
		}
		out = append(out, st)
	}
	return out, nil
}

func database(name string, in config.Database) (schema.Database, error) {
	db := schema.Database{
		Name:          name,
		ID:            store.NormalizeID(in.ID),
		Kind:          catalog.Kind(in.Kind),
		PrimaryScheme: in.PrimaryScheme,
		Icon:          in.Icon,
		Properties:    make(map[schema.Field]string, len(in.Properties)),
		IDProperties:  make(map[string]string, len(in.IDProperties)),
		Behavior:      make(map[schema.Field]merge.Behavior, len(in.Behavior)),
	}
	for key, prop := range in.Properties {
		field, err := schema.ParseField(key)
		if err != nil {
			return schema.Database{}, fmt.Errorf("properties: %w", err)
		}
		db.Properties[field] = prop
	}
	for scheme, prop := range in.IDProperties {
		db.IDProperties[scheme] = prop
	}
	for key, value := range in.Behavior {
		field, err := schema.ParseField(key)
		if err != nil {
			return schema.Database{}, fmt.Errorf("behavior: %w", err)
		}
		behavior, err := merge.ParseBehavior(value)
		if err != nil {
			return schema.Database{}, fmt.Errorf("behavior %s: %w", key, err)
		}
		db.Behavior[field] = behavior
	}
	if _, err := db.Policy(); err != nil {
		return schema.Database{}, err
	}
	return db, nil
}
