package models

// FieldType is the semantic type of a field as named by the content API.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeText     FieldType = "text"
	FieldTypeSlug     FieldType = "slug"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeFloat    FieldType = "float"
	FieldTypeDate     FieldType = "date"
	FieldTypeDateTime FieldType = "date_time"
	FieldTypeJSON     FieldType = "json"
	FieldTypeColor    FieldType = "color"
	FieldTypeFile     FieldType = "file"
	FieldTypeGallery  FieldType = "gallery"
	FieldTypeSEO      FieldType = "seo"
	FieldTypeLatLon   FieldType = "lat_lon"
	FieldTypeVideo    FieldType = "video"

	// FieldTypeRichText is the list-shaped block container ("modular content").
	FieldTypeRichText FieldType = "rich_text"
	// FieldTypeSingleBlock holds at most one block.
	FieldTypeSingleBlock FieldType = "single_block"
	// FieldTypeStructuredText holds a DAST document that may embed blocks
	// and reference records.
	FieldTypeStructuredText FieldType = "structured_text"
	// FieldTypeLinks is a list of record references.
	FieldTypeLinks FieldType = "links"
	// FieldTypeLink is a single record reference.
	FieldTypeLink FieldType = "link"
)

// IsBlockContainer reports whether fields of this type can hold blocks.
func (t FieldType) IsBlockContainer() bool {
	switch t {
	case FieldTypeRichText, FieldTypeSingleBlock, FieldTypeStructuredText:
		return true
	default:
		return false
	}
}

// BlocksValidator returns the validator listing the block types a container
// field accepts, or "" if the field type holds no blocks.
func (t FieldType) BlocksValidator() string {
	switch t {
	case FieldTypeRichText:
		return ValidatorRichTextBlocks
	case FieldTypeSingleBlock:
		return ValidatorSingleBlockBlocks
	case FieldTypeStructuredText:
		return ValidatorStructuredTextBlocks
	default:
		return ""
	}
}

// LinksValidator returns the validator listing the record types a field may
// reference, or "" if the field type references no records.
func (t FieldType) LinksValidator() string {
	switch t {
	case FieldTypeLinks:
		return ValidatorItemsItemType
	case FieldTypeLink:
		return ValidatorItemItemType
	case FieldTypeStructuredText:
		return ValidatorStructuredTextLinks
	default:
		return ""
	}
}

// ReferenceType returns the reference field type replacing a block container:
// links for lists, link for single blocks.
func (t FieldType) ReferenceType() FieldType {
	if t == FieldTypeSingleBlock {
		return FieldTypeLink
	}
	return FieldTypeLinks
}
