package merge

import "strings"

// Engine reconciles fetched properties with stored ones under a fixed policy.
// It is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine binds an engine to policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Merge returns existing overlaid with every property in fetched, each
// reconciled per the policy. Neither input is modified.
func (e *Engine) Merge(existing, fetched Properties) Properties {
	out := existing.Clone()
	if out == nil {
		out = make(Properties, len(fetched))
	}
	for prop, next := range fetched {
		current, had := existing[prop]
		switch e.policy.Behavior(prop) {
		case BehaviorSkip:
			continue
		case BehaviorPreserve:
			if next.IsEmpty() {
				continue
			}
			out[prop] = next.clone()
		case BehaviorMerge:
			switch {
			case next.Kind == KindList || next.Kind == KindRelation:
				if had && current.Kind != next.Kind && !current.IsEmpty() {
					// Kinds disagree; keep the stored value rather than guess.
					continue
				}
				out[prop] = Value{Kind: next.Kind, Items: union(current.Items, next.Items)}
			case next.IsEmpty():
				continue
			default:
				out[prop] = next.clone()
			}
		default:
			out[prop] = next.clone()
		}
	}
	return out
}

// union appends entries of b missing from a, dropping blanks and duplicates
// while keeping a's order.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
