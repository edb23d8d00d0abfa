package models

import "slices"

// Locales is the ordered project locale list. The first entry is the
// default locale.
type Locales []string

// Default returns the default locale, or "" for an empty list.
func (l Locales) Default() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

func (l Locales) Contains(locale string) bool {
	return slices.Contains(l, locale)
}

// Complete returns a per-locale value whose key set is exactly l. Values
// missing from values are produced by fill.
func (l Locales) Complete(values map[string]any, fill func(locale string) any) map[string]any {
	out := make(map[string]any, len(l))
	for _, locale := range l {
		if v, ok := values[locale]; ok {
			out[locale] = v
			continue
		}
		if fill != nil {
			out[locale] = fill(locale)
		} else {
			out[locale] = nil
		}
	}
	return out
}

// Present returns the locales of l that have a key in values, in project
// order, followed by any extra keys of values in sorted order.
func (l Locales) Present(values map[string]any) []string {
	var out []string
	for _, locale := range l {
		if _, ok := values[locale]; ok {
			out = append(out, locale)
		}
	}
	var extra []string
	for locale := range values {
		if !l.Contains(locale) {
			extra = append(extra, locale)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
