package locate

import (
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Group is the set of per-locale copies of the block occupying one slot
// (record and trail) of a localized path.
type Group struct {
	RecordID string
	Trail    []int
	// Attributes holds the block attributes of every project locale.
	Attributes map[string]map[string]any
	// InstanceIDs lists the ids of every merged instance, in locale order.
	InstanceIDs []string
	// Fallback is the locale whose data fills locales without a copy, and
	// fields a copy lacks.
	Fallback string
}

// Key identifies the slot of the group.
func (g Group) Key() string {
	return g.RecordID + "#" + trailKey(g.Trail)
}

// GroupInstances merges instances by (record, trail). The fallback locale
// is the default locale when it holds a copy, else the first project
// locale that does. Groups are returned in order of first appearance.
func GroupInstances(instances []BlockInstance, locales models.Locales) []Group {
	var order []string
	byKey := map[string]*Group{}
	for _, inst := range instances {
		key := inst.RecordID + "#" + inst.TrailKey()
		g, ok := byKey[key]
		if !ok {
			g = &Group{
				RecordID:   inst.RecordID,
				Trail:      inst.Trail,
				Attributes: map[string]map[string]any{},
			}
			byKey[key] = g
			order = append(order, key)
		}
		if _, dup := g.Attributes[inst.Locale]; !dup {
			g.Attributes[inst.Locale] = inst.Attributes
		}
		g.InstanceIDs = append(g.InstanceIDs, inst.ID)
	}

	out := make([]Group, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		g.Fallback = fallback(g.Attributes, locales)
		for _, locale := range locales {
			if _, ok := g.Attributes[locale]; !ok {
				g.Attributes[locale] = g.Attributes[g.Fallback]
			}
		}
		if len(locales) > 0 {
			for locale := range g.Attributes {
				if !locales.Contains(locale) {
					delete(g.Attributes, locale)
				}
			}
		}
		out = append(out, *g)
	}
	return out
}

func fallback(attrs map[string]map[string]any, locales models.Locales) string {
	if _, ok := attrs[locales.Default()]; ok {
		return locales.Default()
	}
	for _, locale := range locales {
		if _, ok := attrs[locale]; ok {
			return locale
		}
	}
	// only copies outside the project locales, or read without a locale
	for _, locale := range models.Locales(nil).Present(toAny(attrs)) {
		return locale
	}
	return ""
}

func toAny(attrs map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
