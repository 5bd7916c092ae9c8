package generator

import "strings"

// Placeholder tokens recognised in prompt templates.
const (
	TokenTitle    = "{artwork_title}"
	TokenAuthor   = "{artist_name}"
	TokenCategory = "{artwork_category}"
)

// Expand substitutes the title, author and category tokens in one pass, so a
// substituted value that itself looks like a token is left alone. Unknown
// tokens pass through unchanged.
func Expand(template, title, author, category string) string {
	r := strings.NewReplacer(
		TokenTitle, title,
		TokenAuthor, author,
		TokenCategory, category,
	)
	return r.Replace(template)
}
