package generator

import "time"

// ContentItem is the artwork a description is generated for. The workflow
// never mutates it; the content store owns it.
type ContentItem struct {
	ID          int64
	Title       string
	AuthorName  string
	// AuthorRoles holds role names only, never capabilities.
	AuthorRoles []string
	// Category is empty when no category could be resolved.
	Category    string
	ImageURL    string
	Excerpt     string
	Status      string
	PostType    string
	PublishedAt time.Time
	Meta        map[string]string
}

// HasImage reports whether the item carries a usable image reference.
func (c ContentItem) HasImage() bool {
	return c.ImageURL != ""
}

// FieldPrompt is one expanded per-field instruction.
type FieldPrompt struct {
	Name        string
	Instruction string
}

// PromptSet is built fresh for every invocation.
type PromptSet struct {
	Context string
	Fields  []FieldPrompt
}

// Instruction returns the expanded instruction for a field.
func (p PromptSet) Instruction(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Instruction, true
		}
	}
	return "", false
}

// SchemaField is one required string property of the response schema.
type SchemaField struct {
	Name        string
	Description string
}

// GenerationRequest is the provider-neutral request; treat it as immutable.
type GenerationRequest struct {
	Model       string
	Context     string
	ImageURL    string
	ImageDetail string
	MaxTokens   int
	SchemaName  string
	Schema      []SchemaField
}

// FieldNames returns the schema field names in order.
func (r GenerationRequest) FieldNames() []string {
	names := make([]string, 0, len(r.Schema))
	for _, f := range r.Schema {
		names = append(names, f.Name)
	}
	return names
}

// GenerationResult holds the generated text per field, or a failure.
// A result with only some fields present is still a success.
type GenerationResult struct {
	Fields  map[string]string
	Raw     string
	Reason  Reason
	Message string
}

// OK reports whether the provider call produced a parsed result.
func (r GenerationResult) OK() bool {
	return r.Reason == ""
}

// Missing lists the requested fields that are absent from the result.
func (r GenerationResult) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := r.Fields[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Err converts a failed result into an *Error, or nil on success.
func (r GenerationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Reason: r.Reason, Message: r.Message}
}

func failure(reason Reason, msg string) GenerationResult {
	return GenerationResult{Reason: reason, Message: msg}
}
