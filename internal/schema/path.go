package schema

import (
	"strings"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// PathStep is one hop of a NestedPath: a container field and the block type
// expected inside it at this hop.
type PathStep struct {
	OwnerTypeID string
	FieldID     string
	FieldKey    string
	FieldType   models.FieldType
	Localized   bool
	BlockTypeID string
}

// NestedPath leads from a record type to the field directly holding the
// target block type. The first step belongs to RootTypeID, every following
// step to the block type expected by the previous one.
type NestedPath struct {
	RootTypeID  string
	RootTypeKey string
	Steps       []PathStep
	// Localized is true when any step is localized.
	Localized bool
}

func newPath(rootTypeID, rootTypeKey string, steps []PathStep) NestedPath {
	p := NestedPath{RootTypeID: rootTypeID, RootTypeKey: rootTypeKey, Steps: steps}
	for _, s := range steps {
		if s.Localized {
			p.Localized = true
		}
	}
	return p
}

// Last returns the step holding the target blocks.
func (p NestedPath) Last() PathStep {
	return p.Steps[len(p.Steps)-1]
}

// Nested reports whether the target field lives inside a block.
func (p NestedPath) Nested() bool {
	return len(p.Steps) > 1
}

// String renders the path as "page.sections > cards" using the root
// type key and field keys.
func (p NestedPath) String() string {
	parts := make([]string, 0, len(p.Steps))
	for i, s := range p.Steps {
		if i == 0 {
			parts = append(parts, p.RootTypeKey+"."+s.FieldKey)
			continue
		}
		parts = append(parts, s.FieldKey)
	}
	return strings.Join(parts, " > ")
}
