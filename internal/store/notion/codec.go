package notion

import (
	"strings"
	"unicode/utf8"

	"shelfsync/internal/merge"
	"shelfsync/internal/store"
)

// Notion caps a single rich text object at 2000 characters.
const maxTextChunk = 2000

type richText struct {
	Type      string    `json:"type,omitempty"`
	Text      *textBody `json:"text,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
}

type textBody struct {
	Content string `json:"content"`
}

type option struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type dateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

type relationRef struct {
	ID string `json:"id"`
}

// propertyValue is the typed JSON shape of a page property.
type propertyValue struct {
	ID             string        `json:"id,omitempty"`
	Type           string        `json:"type,omitempty"`
	Title          []richText    `json:"title,omitempty"`
	RichText       []richText    `json:"rich_text,omitempty"`
	Number         *float64      `json:"number,omitempty"`
	Date           *dateValue    `json:"date,omitempty"`
	Select         *option       `json:"select,omitempty"`
	MultiSelect    []option      `json:"multi_select,omitempty"`
	URL            *string       `json:"url,omitempty"`
	Relation       []relationRef `json:"relation,omitempty"`
	Checkbox       *bool         `json:"checkbox,omitempty"`
	CreatedTime    string        `json:"created_time,omitempty"`
	LastEditedTime string        `json:"last_edited_time,omitempty"`
}

// decodeValue converts a page property into a merge value. Unsupported types
// report false.
func decodeValue(p propertyValue) (merge.Value, bool) {
	switch store.PropertyType(p.Type) {
	case store.TypeTitle:
		return merge.Text(plain(p.Title)), true
	case store.TypeRichText:
		return merge.Text(plain(p.RichText)), true
	case store.TypeNumber:
		return merge.Value{Kind: merge.KindNumber, Number: p.Number}, true
	case store.TypeDate:
		if p.Date == nil {
			return merge.Date(""), true
		}
		return merge.Date(p.Date.Start), true
	case store.TypeSelect:
		if p.Select == nil {
			return merge.Text(""), true
		}
		return merge.Text(p.Select.Name), true
	case store.TypeMultiSelect:
		items := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			items = append(items, o.Name)
		}
		return merge.List(items...), true
	case store.TypeURL:
		if p.URL == nil {
			return merge.Text(""), true
		}
		return merge.Text(*p.URL), true
	case store.TypeRelation:
		ids := make([]string, 0, len(p.Relation))
		for _, r := range p.Relation {
			ids = append(ids, store.NormalizeID(r.ID))
		}
		return merge.Relation(ids...), true
	case store.TypeCheckbox:
		return merge.Bool(p.Checkbox != nil && *p.Checkbox), true
	case store.TypeCreatedTime:
		return merge.Date(p.CreatedTime), true
	case store.TypeLastEditedTime:
		return merge.Date(p.LastEditedTime), true
	default:
		return merge.Value{}, false
	}
}

// encodeValue renders v for a property of type t. Empty values clear the
// property. The result is a single-key object such as {"number": 4.5}.
func encodeValue(t store.PropertyType, v merge.Value) (map[string]any, bool) {
	switch t {
	case store.TypeTitle:
		return map[string]any{"title": chunks(v.String())}, true
	case store.TypeRichText:
		return map[string]any{"rich_text": chunks(v.String())}, true
	case store.TypeNumber:
		if v.Kind != merge.KindNumber || v.Number == nil {
			return map[string]any{"number": nil}, true
		}
		return map[string]any{"number": *v.Number}, true
	case store.TypeDate:
		if v.IsEmpty() {
			return map[string]any{"date": nil}, true
		}
		return map[string]any{"date": dateValue{Start: strings.TrimSpace(v.Text)}}, true
	case store.TypeSelect:
		name := store.CleanMultiSelect(v.String())
		if name == "" {
			return map[string]any{"select": nil}, true
		}
		return map[string]any{"select": option{Name: name}}, true
	case store.TypeMultiSelect:
		items := v.Items
		if v.Kind != merge.KindList && !v.IsEmpty() {
			items = []string{v.String()}
		}
		opts := []option{}
		for _, name := range store.CleanOptions(items) {
			opts = append(opts, option{Name: name})
		}
		return map[string]any{"multi_select": opts}, true
	case store.TypeURL:
		if v.IsEmpty() {
			return map[string]any{"url": nil}, true
		}
		return map[string]any{"url": strings.TrimSpace(v.Text)}, true
	case store.TypeRelation:
		refs := []relationRef{}
		for _, id := range v.Items {
			if id = strings.TrimSpace(id); id != "" {
				refs = append(refs, relationRef{ID: id})
			}
		}
		return map[string]any{"relation": refs}, true
	case store.TypeCheckbox:
		return map[string]any{"checkbox": v.Bool}, true
	default:
		return nil, false
	}
}

func plain(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			b.WriteString(p.PlainText)
		} else if p.Text != nil {
			b.WriteString(p.Text.Content)
		}
	}
	return b.String()
}

// chunks splits s into rich text objects no longer than maxTextChunk runes.
func chunks(s string) []richText {
	out := []richText{}
	for s != "" {
		cut := len(s)
		if utf8.RuneCountInString(s) > maxTextChunk {
			cut = 0
			for i := 0; i < maxTextChunk; i++ {
				_, size := utf8.DecodeRuneInString(s[cut:])
				cut += size
			}
		}
		out = append(out, richText{Type: "text", Text: &textBody{Content: s[:cut]}})
		s = s[cut:]
	}
	return out
}
