package store

import (
	"regexp"
	"strings"
)

const (
	multiSelectLimit = 100
	ellipsis         = "..."
)

var (
	pageIDPattern   = regexp.MustCompile(`(?i)([0-9a-f]{32})`)
	dashedIDPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// NormalizeID lower-cases an id and strips dashes. Values that are not
// 32 hex digits after stripping are returned trimmed.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	compact := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	if len(compact) == 32 && pageIDPattern.MatchString(compact) {
		return compact
	}
	return id
}

// ExtractPageID finds a page id in a URL, dashed id, or bare id. The last
// id in a URL wins so workspace slugs are skipped.
func ExtractPageID(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if m := dashedIDPattern.FindAllString(value, -1); len(m) > 0 {
		return NormalizeID(m[len(m)-1]), true
	}
	if i := strings.IndexAny(value, "?#"); i >= 0 {
		value = value[:i]
	}
	m := pageIDPattern.FindAllString(value, -1)
	if len(m) == 0 {
		return "", false
	}
	return strings.ToLower(m[len(m)-1]), true
}

// CleanMultiSelect makes a value safe as a multi-select option: commas and
// semicolons are removed, whitespace collapsed, and length capped.
func CleanMultiSelect(value string) string {
	value = strings.NewReplacer(",", "", ";", "").Replace(value)
	value = strings.Join(strings.Fields(value), " ")
	if r := []rune(value); len(r) > multiSelectLimit {
		value = string(r[:multiSelectLimit-len(ellipsis)]) + ellipsis
	}
	return value
}

// CleanOptions applies CleanMultiSelect and drops blanks and duplicates.
func CleanOptions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = CleanMultiSelect(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
