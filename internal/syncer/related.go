package syncer

import (
	"context"
	"errors"

	"shelfsync/internal/catalog"
	"shelfsync/internal/identity"
	"shelfsync/internal/logging"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// link makes sure every parent of rec exists in the target and returns the
// relation values for db. Parents must rank strictly above rec.
func (s *Syncer) link(ctx context.Context, r *run, db schema.Database, rec *catalog.Record, depth int) (map[schema.Field][]string, error) {
	if rec.Kind.Rank() == 0 || len(rec.Related) == 0 {
		return nil, nil
	}
	relations := map[schema.Field][]string{}
	for _, parent := range rec.Related {
		if parent.Kind.Rank() <= rec.Kind.Rank() {
			continue
		}
		field, ok := schema.RelationField(parent.Kind)
		if !ok {
			continue
		}
		if _, mapped := db.Property(field); !mapped {
			continue
		}
		id, _, err := s.ensure(ctx, r, parent, depth)
		if err != nil {
			if services.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			logging.WarnWithContext(r.logger, "related record unavailable", "related_link_failed",
				logging.String("kind", string(parent.Kind)),
				logging.String("title", parent.Title),
				logging.Error(err),
				logging.String(logging.FieldImpact, "relation left unset"),
				logging.String(logging.FieldErrorHint, hintFor(err)),
			)
			continue
		}
		if id != "" {
			relations[field] = append(relations[field], id)
		}
	}
	return relations, nil
}

// ensure looks rec up by its primary external id and creates it, with its
// own parents, when missing. Work for one entity is serialized under a
// per-entity lock so concurrent records never create duplicates. The
// boolean reports whether this call created the record.
func (s *Syncer) ensure(ctx context.Context, r *run, rec catalog.Record, depth int) (string, bool, error) {
	if depth > s.maxDepth {
		return "", false, nil
	}
	db, ok := r.target.DatabaseForKind(rec.Kind)
	if !ok {
		return "", false, nil
	}
	key := entityKey(r.target.Name, db, &rec)
	unlock := r.locks.Lock(key)
	defer unlock()
	keys := []string{key}
	remember := func(id string) {
		for _, k := range keys {
			r.remember(k, id)
		}
	}

	if id, ok := r.entity(key); ok {
		return id, false, nil
	}
	id, err := s.lookup(ctx, db, &rec)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		remember(id)
		return id, false, nil
	}

	full := &rec
	if rec.Partial {
		got, err := s.resolver.Resolve(ctx, identity.Hint{Kind: rec.Kind, IDs: rec.ExternalIDs, Name: rec.Title})
		switch {
		case err == nil:
			full = got
		case services.IsFatal(err) || ctx.Err() != nil:
			return "", false, err
		default:
			r.logger.Debug("partial related record kept",
				logging.String("kind", string(rec.Kind)),
				logging.String("title", rec.Title),
				logging.Error(err),
			)
		}
		if full != &rec {
			// Full detail can carry a primary id the partial lacked. Partial
			// keys lock before full keys, never the reverse.
			if fullKey := entityKey(r.target.Name, db, full); fullKey != key {
				unlockFull := r.locks.Lock(fullKey)
				defer unlockFull()
				keys = append(keys, fullKey)
				if id, ok := r.entity(fullKey); ok {
					remember(id)
					return id, false, nil
				}
			}
			existing, err := s.lookup(ctx, db, full)
			if err != nil {
				return "", false, err
			}
			if existing != "" {
				remember(existing)
				return existing, false, nil
			}
		}
	}

	relations, err := s.link(ctx, r, db, full, depth+1)
	if err != nil {
		return "", false, err
	}
	creation := Creation{
		Database:   db.Name,
		Kind:       full.Kind,
		Title:      full.Title,
		ExternalID: full.ExternalID(db.PrimaryScheme),
	}
	if r.req.Flags.DryRun {
		r.rec.planned(creation)
		remember("")
		return "", false, nil
	}

	props := schema.Map(db, r.schemas[db.Name], full, relations)
	if prop, ok := db.Property(schema.FieldLastSynced); ok {
		props[prop] = schema.SyncedValue(s.now())
	}
	id, err = s.store.Create(services.WithStage(ctx, "create"), db.ID, props, decoration(r.target.Name, db, full))
	if err != nil {
		return "", false, err
	}
	creation.RecordID = id
	r.rec.created(creation)
	remember(id)
	r.logger.Info("record created",
		logging.String(logging.FieldRecordID, id),
		logging.String("database", db.Name),
		logging.String("kind", string(full.Kind)),
		logging.String("title", full.Title),
	)
	return id, true, nil
}

// lookup finds an existing record of db carrying rec's primary id.
func (s *Syncer) lookup(ctx context.Context, db schema.Database, rec *catalog.Record) (string, error) {
	prop, ok := db.PrimaryProperty()
	value := rec.ExternalID(db.PrimaryScheme)
	if !ok || value == "" {
		return "", nil
	}
	found, err := s.store.Query(ctx, db.ID, store.Filter{Equals: &store.Match{Property: prop, Value: value}, Limit: 1})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0].ID, nil
}

// entityKey identifies an entity within a target. The primary external id
// is preferred; records without one fall back to their provider id.
func entityKey(target catalog.Target, db schema.Database, rec *catalog.Record) string {
	scheme, id := db.PrimaryScheme, rec.ExternalID(db.PrimaryScheme)
	if id == "" {
		scheme, id = rec.Provider, rec.ID
	}
	return string(target) + "|" + string(rec.Kind) + "|" + scheme + ":" + id
}
