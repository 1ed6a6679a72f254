// Package taglist implements the ordered tag list edited in the admin panel.
//
// A List never holds an empty tag or two tags that differ only by case or
// surrounding whitespace. The first spelling wins.
package taglist

import (
	"strings"
)

// List is an ordered, de-duplicated set of tags.
type List []string

// Normalize trims every tag, drops empty ones and removes duplicates while
// preserving first-seen order. Duplicates are compared case-insensitively.
func Normalize(tags []string) List {
	out := make(List, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), " ")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Add appends tag unless it is empty or already present. It reports whether
// the list changed.
func (l List) Add(tag string) (List, bool) {
	next := Normalize(append(append([]string(nil), l...), tag))
	return next, len(next) != len(Normalize(l))
}

// Remove drops tag, matched case-insensitively.
func (l List) Remove(tag string) List {
	key := strings.ToLower(strings.TrimSpace(tag))
	out := make(List, 0, len(l))
	for _, existing := range l {
		if strings.ToLower(existing) == key {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// Contains reports whether tag is in the list.
func (l List) Contains(tag string) bool {
	key := strings.ToLower(strings.TrimSpace(tag))
	for _, existing := range l {
		if strings.ToLower(existing) == key {
			return true
		}
	}
	return false
}

// Parse reads the tag control's form submission. The control posts one value
// per chip plus a free-text input that may hold comma-separated entries.
func Parse(values []string) List {
	var raw []string
	for _, v := range values {
		raw = append(raw, strings.Split(v, ",")...)
	}
	return Normalize(raw)
}

// String renders the list the way the free-text input expects it.
func (l List) String() string {
	return strings.Join(l, ", ")
}
