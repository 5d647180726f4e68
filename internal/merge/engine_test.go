package merge

import (
	"reflect"
	"testing"
)

func mustPolicy(t *testing.T, rules map[string]Behavior) Policy {
	t.Helper()
	p, err := NewPolicy(rules)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func TestMergeBehaviors(t *testing.T) {
	engine := NewEngine(mustPolicy(t, map[string]Behavior{
		"genres":   BehaviorMerge,
		"rating":   BehaviorPreserve,
		"notes":    BehaviorSkip,
		"platform": BehaviorDefault,
	}))
	existing := Properties{
		"genres":   List("Rock", "Jazz"),
		"rating":   Number(4),
		"notes":    Text("mine"),
		"platform": List("PC"),
		"other":    Text("untouched"),
	}
	fetched := Properties{
		"genres":   List("Jazz", "Blues", "Rock", "Blues"),
		"rating":   {Kind: KindNumber},
		"notes":    Text("theirs"),
		"platform": List(),
		"title":    Text("New"),
	}

	got := engine.Merge(existing, fetched)

	if want := []string{"Rock", "Jazz", "Blues"}; !reflect.DeepEqual(got["genres"].Items, want) {
		t.Fatalf("merge genres = %v, want %v", got["genres"].Items, want)
	}
	if !got["rating"].Equal(Number(4)) {
		t.Fatalf("preserve should keep stored rating, got %v", got["rating"])
	}
	if got["notes"].Text != "mine" {
		t.Fatalf("skip should keep stored notes, got %v", got["notes"])
	}
	if !got["platform"].IsEmpty() {
		t.Fatalf("default should clear platform, got %v", got["platform"])
	}
	if got["title"].Text != "New" {
		t.Fatalf("unlisted property should take fetched value, got %v", got["title"])
	}
	if got["other"].Text != "untouched" {
		t.Fatalf("property absent from fetched should survive, got %v", got["other"])
	}
	if existing["genres"].Items[0] != "Rock" || len(existing["genres"].Items) != 2 {
		t.Fatalf("existing was modified: %v", existing["genres"])
	}
}

func TestMergeKeepsExistingOrderAndNoDuplicates(t *testing.T) {
	engine := NewEngine(mustPolicy(t, map[string]Behavior{"tags": BehaviorMerge}))
	cases := []struct {
		existing []string
		fetched  []string
	}{
		{[]string{"a", "b", "c"}, []string{"c", "d"}},
		{[]string{"z", "y"}, nil},
		{nil, []string{"x", "x", "w"}},
		{[]string{"m", "n", "m"}, []string{"n", "o", "o"}},
	}
	for _, tc := range cases {
		got := engine.Merge(Properties{"tags": List(tc.existing...)}, Properties{"tags": List(tc.fetched...)})["tags"].Items
		seen := map[string]bool{}
		for _, item := range got {
			if seen[item] {
				t.Fatalf("duplicate %q in %v", item, got)
			}
			seen[item] = true
		}
		stored := union(tc.existing, nil)
		if !reflect.DeepEqual(got[:len(stored)], stored) {
			t.Fatalf("stored entries %v not kept in order: %v", stored, got)
		}
		for _, item := range tc.fetched {
			if !seen[item] {
				t.Fatalf("fetched entry %q missing from %v", item, got)
			}
		}
	}
}

func TestPreserveEmptyIsNoOp(t *testing.T) {
	engine := NewEngine(mustPolicy(t, map[string]Behavior{"desc": BehaviorPreserve, "cover": BehaviorPreserve}))
	existing := Properties{"desc": Text("keep me"), "cover": Text("")}
	got := engine.Merge(existing, Properties{"desc": Text("  "), "cover": Text("")})
	if !reflect.DeepEqual(got, existing) {
		t.Fatalf("preserve with empty fetched changed record: %v", got)
	}
}

func TestMergeScalarActsLikePreserve(t *testing.T) {
	engine := NewEngine(mustPolicy(t, map[string]Behavior{"title": BehaviorMerge}))
	got := engine.Merge(Properties{"title": Text("Old")}, Properties{"title": Text("")})
	if got["title"].Text != "Old" {
		t.Fatalf("expected stored scalar kept, got %v", got["title"])
	}
	got = engine.Merge(Properties{"title": Text("Old")}, Properties{"title": Text("New")})
	if got["title"].Text != "New" {
		t.Fatalf("expected fetched scalar, got %v", got["title"])
	}
}

func TestNewPolicyRejectsUnknownBehavior(t *testing.T) {
	if _, err := NewPolicy(map[string]Behavior{"x": "append"}); err == nil {
		t.Fatal("expected error for unknown behavior")
	}
	if _, err := NewPolicy(map[string]Behavior{" ": BehaviorMerge}); err == nil {
		t.Fatal("expected error for blank property id")
	}
}

func TestPolicyIsCopied(t *testing.T) {
	rules := map[string]Behavior{"a": BehaviorSkip}
	p := mustPolicy(t, rules)
	rules["a"] = BehaviorDefault
	if p.Behavior("a") != BehaviorSkip {
		t.Fatal("policy shares the caller's map")
	}
	if p.Behavior("missing") != BehaviorDefault {
		t.Fatal("unlisted property should default")
	}
}
