package publisher

import (
	"context"
	"errors"

	"ai_art_description/generator"
)

// ErrNotFound is returned by LoadItem when the item does not exist.
var ErrNotFound = errors.New("item not found")

// Store is the content store the workflow reads items from and writes
// generated text to. Each write is independent and assumed atomic.
type Store interface {
	LoadItem(ctx context.Context, id int64) (generator.ContentItem, error)
	UpdateExcerpt(ctx context.Context, id int64, text string) error
	UpdateMeta(ctx context.Context, id int64, key, value string) error
}
