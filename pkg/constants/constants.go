package constants

import "time"

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)

const (
	// DefaultBatchSize is the number of records created concurrently per batch.
	DefaultBatchSize = 5
	// DefaultBatchPause is the pause between two record creation batches.
	DefaultBatchPause = 500 * time.Millisecond
	// DefaultPageSize is the page size used when iterating records.
	DefaultPageSize = 100

	// MaxAPIKeyLength bounds generated item type and field api keys.
	MaxAPIKeyLength = 40
	// MaxKeyAttempts bounds the number of suffixed api keys tried on collision.
	MaxKeyAttempts = 26

	// CompanionSuffix is appended to a container field api key to name the
	// links field created next to it on partial conversion.
	CompanionSuffix = "_links"
	// TempSuffix names the transitional field used on full replacement.
	TempSuffix = "_tmp"

	// DastSchema is the schema marker of structured text values.
	DastSchema = "dast"
)
