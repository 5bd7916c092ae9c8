package generator

import "fmt"

// ComposeOptions carries the model settings that are not part of the item.
type ComposeOptions struct {
	Model       string
	MaxTokens   int
	ImageDetail string
	SchemaName  string
}

// Compose builds the request for one item: the context instruction plus the
// image, and one required schema property per prompt field. It fails with
// ReasonMissingImage when the item has no image and with ReasonInvalidConfig
// when two fields share a name.
func Compose(item ContentItem, set PromptSet, opts ComposeOptions) (GenerationRequest, error) {
	if !item.HasImage() {
		return GenerationRequest{}, &Error{
			Reason:  ReasonMissingImage,
			Message: fmt.Sprintf("no image found for item %d", item.ID),
		}
	}

	seen := make(map[string]bool, len(set.Fields))
	schema := make([]SchemaField, 0, len(set.Fields))
	for _, f := range set.Fields {
		if seen[f.Name] {
			return GenerationRequest{}, &Error{
				Reason:  ReasonInvalidConfig,
				Message: fmt.Sprintf("duplicate schema field %q", f.Name),
			}
		}
		seen[f.Name] = true
		schema = append(schema, SchemaField{Name: f.Name, Description: f.Instruction})
	}

	name := opts.SchemaName
	if name == "" {
		name = DefaultSchemaName
	}
	detail := opts.ImageDetail
	if detail == "" {
		detail = "high"
	}

	return GenerationRequest{
		Model:       opts.Model,
		Context:     set.Context,
		ImageURL:    item.ImageURL,
		ImageDetail: detail,
		MaxTokens:   opts.MaxTokens,
		SchemaName:  name,
		Schema:      schema,
	}, nil
}

// JSONSchema renders the response schema as a strict JSON Schema object.
func (r GenerationRequest) JSONSchema() map[string]any {
	props := make(map[string]any, len(r.Schema))
	required := make([]string, 0, len(r.Schema))
	for _, f := range r.Schema {
		props[f.Name] = map[string]any{
			"type":        "string",
			"description": f.Description,
		}
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
