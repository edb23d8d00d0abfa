package models

import "slices"

const (
	ValidatorRichTextBlocks       = "rich_text_blocks"
	ValidatorSingleBlockBlocks    = "single_block_blocks"
	ValidatorStructuredTextBlocks = "structured_text_blocks"
	ValidatorStructuredTextLinks  = "structured_text_links"
	ValidatorItemsItemType        = "items_item_type"
	ValidatorItemItemType         = "item_item_type"
	ValidatorSlugTitleField       = "slug_title_field"
	ValidatorRequired             = "required"
	ValidatorUnique               = "unique"
)

// Validators maps a validator name to its parameters, exactly as the content
// API serializes them.
type Validators map[string]any

// ItemTypes returns the item_types parameter of the named validator.
func (v Validators) ItemTypes(name string) []string {
	params, ok := v[name].(map[string]any)
	if !ok {
		return nil
	}
	return stringList(params["item_types"])
}

// Allows reports whether the named validator lists typeID.
func (v Validators) Allows(name, typeID string) bool {
	return slices.Contains(v.ItemTypes(name), typeID)
}

// WithItemTypes returns a copy of v whose named validator lists ids.
// Other parameters of that validator are kept.
func (v Validators) WithItemTypes(name string, ids []string) Validators {
	out := v.Clone()
	params := map[string]any{}
	if existing, ok := out[name].(map[string]any); ok {
		for k, val := range existing {
			params[k] = val
		}
	}
	list := make([]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, id)
	}
	params["item_types"] = list
	out[name] = params
	return out
}

// TitleFieldID returns the field referenced by a slug_title_field validator.
func (v Validators) TitleFieldID() string {
	params, ok := v[ValidatorSlugTitleField].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := params["title_field_id"].(string)
	return id
}

// Clone returns a copy of v. Parameter maps are copied one level deep.
func (v Validators) Clone() Validators {
	out := make(Validators, len(v))
	for name, params := range v {
		if m, ok := params.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for k, val := range m {
				cp[k] = val
			}
			out[name] = cp
			continue
		}
		out[name] = params
	}
	return out
}

// Without returns a copy of v without the named validator.
func (v Validators) Without(name string) Validators {
	out := v.Clone()
	delete(out, name)
	return out
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
