package blocktolinks

import (
	"time"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/dast"
)

// Options configures one conversion. A Converter copies the value it is
// given; changing the caller's copy afterwards has no effect.
type Options struct {
	// Mode decides whether structured-text documents lose their blocks
	// (Replace) or keep them next to the new references (Augment).
	Mode dast.Mode
	// ForceLocalized creates every destination field localized.
	ForceLocalized bool
	// SkipDestructive never deletes or renames fields.
	SkipDestructive bool
	// NameSuffix is appended to the destination type's name and api key.
	NameSuffix string
	// Verbose enables debug logging.
	Verbose bool
	// BatchSize bounds concurrent record creations.
	BatchSize int
	// BatchPause is waited between creation batches.
	BatchPause time.Duration
	// DeleteSourceType destroys the block type after a Replace conversion
	// once no field accepts it anymore.
	DeleteSourceType bool
}

func DefaultOptions() Options {
	return Options{
		Mode:       dast.Replace,
		BatchSize:  constants.DefaultBatchSize,
		BatchPause: constants.DefaultBatchPause,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = constants.DefaultBatchSize
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	}
	return o
}
