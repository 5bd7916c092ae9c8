package generator

// DefaultFallbackCategory replaces a category that could not be resolved.
const DefaultFallbackCategory = "Art"

// Templates maps field names to prompt templates. Context is kept apart
// because it anchors the request rather than describing an output field.
type Templates struct {
	Context string
	Fields  map[string]string
}

// DefaultTemplates returns the built-in templates for fields.
func DefaultTemplates(fields []Field) Templates {
	t := Templates{
		Context: DefaultContextTemplate,
		Fields:  make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		t.Fields[f.Name] = f.DefaultTemplate
	}
	return t
}

// Template returns the configured template for a field, falling back to the
// field's default when none is set.
func (t Templates) Template(f Field) string {
	if s, ok := t.Fields[f.Name]; ok && s != "" {
		return s
	}
	return f.DefaultTemplate
}

// BuildPromptSet expands the context and every field template against the
// item. An empty category is replaced by fallbackCategory, or by
// DefaultFallbackCategory when that is empty too.
func BuildPromptSet(item ContentItem, fields []Field, tpl Templates, fallbackCategory string) PromptSet {
	category := item.Category
	if category == "" {
		category = fallbackCategory
	}
	if category == "" {
		category = DefaultFallbackCategory
	}

	context := tpl.Context
	if context == "" {
		context = DefaultContextTemplate
	}

	set := PromptSet{
		Context: Expand(context, item.Title, item.AuthorName, category),
		Fields:  make([]FieldPrompt, 0, len(fields)),
	}
	for _, f := range fields {
		set.Fields = append(set.Fields, FieldPrompt{
			Name:        f.Name,
			Instruction: Expand(tpl.Template(f), item.Title, item.AuthorName, category),
		})
	}
	return set
}
