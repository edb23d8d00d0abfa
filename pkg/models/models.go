package models

// ItemType is a content type. Blocks (ModularBlock) only exist embedded in
// other records.
type ItemType struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	APIKey       string   `json:"api_key"`
	ModularBlock bool     `json:"modular_block"`
	TitleField   string   `json:"title_field,omitempty"`
	Fields       []string `json:"fields,omitempty"`
}

// Field belongs to exactly one ItemType.
type Field struct {
	ID           string      `json:"id,omitempty"`
	ItemType     string      `json:"item_type,omitempty"`
	Label        string      `json:"label"`
	APIKey       string      `json:"api_key"`
	FieldType    FieldType   `json:"field_type"`
	Localized    bool        `json:"localized"`
	Validators   Validators  `json:"validators"`
	Position     int         `json:"position"`
	Appearance   *Appearance `json:"appearance,omitempty"`
	Hint         string      `json:"hint,omitempty"`
	DefaultValue any         `json:"default_value,omitempty"`
}

// Appearance describes how the editing interface renders a field.
type Appearance struct {
	Editor     string           `json:"editor"`
	Parameters map[string]any   `json:"parameters,omitempty"`
	Addons     []map[string]any `json:"addons,omitempty"`
}

// Item is a top-level record.
type Item struct {
	ID         string         `json:"id,omitempty"`
	ItemType   string         `json:"item_type"`
	Attributes map[string]any `json:"attributes"`
}

// Site carries project wide settings. Locales[0] is the default locale.
type Site struct {
	Locales []string `json:"locales"`
}
