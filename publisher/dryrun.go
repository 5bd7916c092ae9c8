package publisher

import (
	"context"

	"github.com/rs/zerolog/log"

	"ai_art_description/generator"
)

// DryRunStore reads through to Store but only logs writes.
type DryRunStore struct {
	Store Store
}

func (d DryRunStore) LoadItem(ctx context.Context, id int64) (generator.ContentItem, error) {
	return d.Store.LoadItem(ctx, id)
}

func (d DryRunStore) UpdateExcerpt(_ context.Context, id int64, text string) error {
	log.Info().Int64("item_id", id).Str("excerpt", text).Msg("[dry-run] would update excerpt")
	return nil
}

func (d DryRunStore) UpdateMeta(_ context.Context, id int64, key, value string) error {
	log.Info().Int64("item_id", id).Str("key", key).Str("value", value).Msg("[dry-run] would update meta")
	return nil
}
