package syncer

import "time"

// DefaultGrace absorbs the edit-time bump caused by writing the last-synced
// marker itself.
const DefaultGrace = 2 * time.Minute

// NeedsSync reports whether a record must be processed. A zero lastSynced
// means the record has never been synced.
func NeedsSync(lastEdited, lastSynced time.Time, flags Flags, grace time.Duration) bool {
	if flags.Forced() || lastSynced.IsZero() {
		return true
	}
	return lastEdited.Sub(lastSynced) > grace
}
