package merge

import (
	"fmt"
	"sort"
	"strings"
)

// Behavior governs how a fetched value reconciles with the stored one.
type Behavior string

const (
	// BehaviorDefault always takes the fetched value, even when empty.
	BehaviorDefault Behavior = "default"
	// BehaviorMerge unions list values, keeping stored order first.
	BehaviorMerge Behavior = "merge"
	// BehaviorPreserve takes the fetched value only when it is non-empty.
	BehaviorPreserve Behavior = "preserve"
	// BehaviorSkip never touches the stored value.
	BehaviorSkip Behavior = "skip"
)

// ParseBehavior accepts a behavior name case-insensitively. "replace" and
// "overwrite" are accepted as aliases for default.
func ParseBehavior(value string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "default", "replace", "overwrite":
		return BehaviorDefault, nil
	case "merge":
		return BehaviorMerge, nil
	case "preserve":
		return BehaviorPreserve, nil
	case "skip":
		return BehaviorSkip, nil
	default:
		return "", fmt.Errorf("unknown field behavior %q", value)
	}
}

// Policy is an immutable property-id to behavior table.
type Policy struct {
	rules map[string]Behavior
}

// NewPolicy validates and copies rules.
func NewPolicy(rules map[string]Behavior) (Policy, error) {
	copied := make(map[string]Behavior, len(rules))
	for prop, behavior := range rules {
		prop = strings.TrimSpace(prop)
		if prop == "" {
			return Policy{}, fmt.Errorf("policy rule has empty property id")
		}
		normalized, err := ParseBehavior(string(behavior))
		if err != nil {
			return Policy{}, fmt.Errorf("property %s: %w", prop, err)
		}
		copied[prop] = normalized
	}
	return Policy{rules: copied}, nil
}

// Behavior returns the rule for prop, defaulting to BehaviorDefault.
func (p Policy) Behavior(prop string) Behavior {
	if b, ok := p.rules[prop]; ok {
		return b
	}
	return BehaviorDefault
}

// Properties lists the property ids the policy names, sorted.
func (p Policy) Properties() []string {
	out := make([]string, 0, len(p.rules))
	for prop := range p.rules {
		out = append(out, prop)
	}
	sort.Strings(out)
	return out
}
