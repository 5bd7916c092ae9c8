package publisher

import (
	"context"

	"github.com/rs/zerolog/log"

	"ai_art_description/generator"
)

// Destination is where one schema field is written.
type Destination struct {
	Field string
	Kind  generator.DestinationKind
	Key   string
}

// DestinationMap is fixed at deploy time.
type DestinationMap struct {
	Destinations   []Destination
	RawResponseKey string
}

// DestinationsFor derives the destination map from the schema fields.
func DestinationsFor(fields []generator.Field, rawKey string) DestinationMap {
	dm := DestinationMap{RawResponseKey: rawKey}
	for _, f := range fields {
		dm.Destinations = append(dm.Destinations, Destination{Field: f.Name, Kind: f.Kind, Key: f.Key})
	}
	return dm
}

// Distribution reports what Distribute did. Skipped holds fields absent from
// the result; Failed holds fields whose write returned an error.
type Distribution struct {
	Written  []string
	Skipped  []string
	Failed   map[string]error
	RawSaved bool
}

// Distribute writes every present field to its destination after stripping
// markup. Writes are independent: an absent field or a failed write never
// stops the others.
func Distribute(ctx context.Context, store Store, result generator.GenerationResult, dm DestinationMap, itemID int64) Distribution {
	d := Distribution{Failed: make(map[string]error)}
	for _, dest := range dm.Destinations {
		text, ok := result.Fields[dest.Field]
		if !ok {
			d.Skipped = append(d.Skipped, dest.Field)
			continue
		}
		text = generator.StripMarkup(text)

		var err error
		switch dest.Kind {
		case generator.DestinationExcerpt:
			err = store.UpdateExcerpt(ctx, itemID, text)
		default:
			err = store.UpdateMeta(ctx, itemID, dest.Key, text)
		}
		if err != nil {
			log.Error().Err(err).Int64("item_id", itemID).Str("field", dest.Field).Msg("Failed to write generated field")
			d.Failed[dest.Field] = err
			continue
		}
		d.Written = append(d.Written, dest.Field)
	}

	if dm.RawResponseKey != "" && result.Raw != "" {
		if err := store.UpdateMeta(ctx, itemID, dm.RawResponseKey, result.Raw); err != nil {
			log.Warn().Err(err).Int64("item_id", itemID).Msg("Failed to save raw response")
		} else {
			d.RawSaved = true
		}
	}
	return d
}
