package merge

// ChangeType classifies a property change.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeChanged ChangeType = "changed"
	ChangeCleared ChangeType = "cleared"
)

// Change describes one property whose value differs after a merge.
type Change struct {
	Property string     `json:"property"`
	Type     ChangeType `json:"type"`
	Before   Value      `json:"before"`
	After    Value      `json:"after"`
}

// Diff lists properties of updated that differ from existing, sorted by
// property id. Properties absent from updated are not reported.
func Diff(existing, updated Properties) []Change {
	var changes []Change
	for _, prop := range updated.Keys() {
		after := updated[prop]
		before := existing[prop]
		if before.Equal(after) {
			continue
		}
		change := Change{Property: prop, Before: before, After: after}
		switch {
		case before.IsEmpty():
			change.Type = ChangeAdded
		case after.IsEmpty():
			change.Type = ChangeCleared
		default:
			change.Type = ChangeChanged
		}
		changes = append(changes, change)
	}
	return changes
}

// Changed returns only the properties named in changes.
func Changed(props Properties, changes []Change) Properties {
	out := make(Properties, len(changes))
	for _, c := range changes {
		out[c.Property] = props[c.Property]
	}
	return out
}
