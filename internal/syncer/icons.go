package syncer

import (
	"shelfsync/internal/catalog"
	"shelfsync/internal/schema"
	"shelfsync/internal/store"
)

var targetIcons = map[catalog.Target]string{
	catalog.TargetGames:  "🎮",
	catalog.TargetMovies: "🎬",
	catalog.TargetBooks:  "📚",
	catalog.TargetMusic:  "🎵",
}

var kindIcons = map[catalog.Kind]string{
	catalog.KindTV: "📺",
}

// Icon returns the emoji for records of db, falling back to the target's.
func Icon(target catalog.Target, db schema.Database) string {
	if db.Icon != "" {
		return db.Icon
	}
	return targetIcons[target]
}

// recordIcon is Icon, except that a record kind with its own emoji wins over
// the target default.
func recordIcon(target catalog.Target, db schema.Database, kind catalog.Kind) string {
	if icon, ok := kindIcons[kind]; ok && db.Icon == "" {
		return icon
	}
	return Icon(target, db)
}

func decoration(target catalog.Target, db schema.Database, rec *catalog.Record) store.Decoration {
	deco := store.Decoration{Icon: Icon(target, db)}
	if rec != nil {
		deco.Icon = recordIcon(target, db, rec.Kind)
		deco.CoverURL = rec.CoverURL
	}
	return deco
}
