package generator

// DestinationKind says where a generated field is stored.
type DestinationKind string

const (
	DestinationExcerpt DestinationKind = "excerpt"
	DestinationMeta    DestinationKind = "meta"
)

// Canonical output field names.
const (
	FieldGalleryDescription = "gallery_description"
	FieldShortSERPSentence  = "short_serp_sentence"
	FieldSharedLinkPreview  = "shared_link_preview"
	FieldPostWithHashtags   = "post_with_hashtags"
)

// DefaultSchemaName is the json_schema name sent to the provider.
const DefaultSchemaName = "artwork_descriptions"

// DefaultRawResponseKey is the meta key holding the raw model output.
const DefaultRawResponseKey = "ai_description"

// DefaultContextTemplate anchors the whole request.
const DefaultContextTemplate = "Give a classy description of the artwork entitled {artwork_title} for the visually impaired. " +
	"Please give all responses in plain text with no line-breaks so that I can just copy and paste it where I need."

// Field is one row of the output schema: the name the model fills in, where
// the text is stored, and the template used when none is configured.
type Field struct {
	Name            string
	Kind            DestinationKind
	Key             string
	DefaultTemplate string
}

// DefaultFields is the single schema definition used everywhere. The
// excerpt field has no storage key; it updates the item itself.
func DefaultFields() []Field {
	return []Field{
		{
			Name:            FieldGalleryDescription,
			Kind:            DestinationExcerpt,
			DefaultTemplate: "Briefly describe this artwork in the form of a Wordpress Post Excerpt.",
		},
		{
			Name: FieldShortSERPSentence,
			Kind: DestinationMeta,
			Key:  "rank_math_description",
			DefaultTemplate: "Describe this artwork in an extremely short Rank Math SERP sentence. " +
				"The sentence needs to be able to display on the SERP page without getting cut off.",
		},
		{
			Name:            FieldSharedLinkPreview,
			Kind:            DestinationMeta,
			Key:             "rank_math_facebook_description",
			DefaultTemplate: "Write a short sentence describing this artwork for Rank Math's Facebook share field.",
		},
		{
			Name:            FieldPostWithHashtags,
			Kind:            DestinationMeta,
			Key:             "rank_math_twitter_description",
			DefaultTemplate: "Write a tweet about this artwork, including hashtags.",
		},
	}
}
