package blocktolinks

import "github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"

// ReferencingField is a container field holding blocks of the source type,
// directly or through other blocks.
type ReferencingField struct {
	OwnerTypeID string
	FieldID     string
	FieldKey    string
	FieldType   models.FieldType
	Localized   bool
	// Nested is true when the owner is itself a block type.
	Nested bool
	// Paths lists the routes from record types to the field, such as
	// "page.sections > cards".
	Paths []string
}

type AnalysisResult struct {
	SourceType        models.ItemType
	Fields            []models.Field
	ReferencingFields []ReferencingField
	// TotalAffectedRecords counts the records holding at least one block.
	TotalAffectedRecords int
	// InstanceCount counts block instances, one per locale they appear in.
	InstanceCount int
}

type ConversionResult struct {
	Success             bool
	DestinationTypeID   string
	DestinationTypeKey  string
	MigratedRecordCount int
	ConvertedFieldCount int
	// Error describes the failure that stopped the conversion.
	Error         string
	Warnings      []string
	FailedRecords []*RecordError
}
