package publisher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ai_art_description/generator"
)

// StatusTransition is a post status change reported by the shop.
type StatusTransition struct {
	ItemID    int64  `json:"item_id"`
	PostType  string `json:"post_type"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// AutoRule holds the settings the publish trigger checks against.
type AutoRule struct {
	PostType       string
	RawResponseKey string
}

// ShouldAutoGenerate reports whether a freshly published item needs copy:
// it is the configured post type, just became "publish", has neither a saved
// AI response nor an excerpt, was published today and has an image. The
// second value names the first rule that failed.
func (r AutoRule) ShouldAutoGenerate(item generator.ContentItem, ev StatusTransition, now time.Time) (bool, string) {
	switch {
	case ev.PostType != r.PostType:
		return false, "post type"
	case ev.NewStatus != "publish":
		return false, "status"
	case item.Meta[r.RawResponseKey] != "":
		return false, "already generated"
	case item.Excerpt != "":
		return false, "excerpt present"
	case !sameDay(item.PublishedAt, now):
		return false, "not published today"
	case !item.HasImage():
		return false, "no image"
	}
	return true, ""
}

// CheckTransition loads the item behind ev and applies the rule. It only
// touches the store when the event itself can qualify.
func (p *Publisher) CheckTransition(ctx context.Context, rule AutoRule, ev StatusTransition, now time.Time) (bool, error) {
	if ev.PostType != rule.PostType || ev.NewStatus != "publish" {
		return false, nil
	}
	item, err := p.store.LoadItem(ctx, ev.ItemID)
	if err != nil {
		return false, err
	}
	ok, why := rule.ShouldAutoGenerate(item, ev, now)
	if !ok {
		log.Debug().Int64("item_id", ev.ItemID).Str("rule", why).Msg("Skipping auto generation")
	}
	return ok, nil
}

// HandleTransition runs the workflow without override when the transition
// qualifies. The bool is false when nothing was run.
func (p *Publisher) HandleTransition(ctx context.Context, rule AutoRule, ev StatusTransition, now time.Time) (Outcome, bool) {
	ok, err := p.CheckTransition(ctx, rule, ev, now)
	if err != nil {
		log.Error().Err(err).Int64("item_id", ev.ItemID).Msg("Failed to load published item")
		return fail(ev.ItemID, generator.ReasonStoreFailure, err.Error()), false
	}
	if !ok {
		return Outcome{ItemID: ev.ItemID}, false
	}
	return p.GenerateDescription(ctx, Request{ItemID: ev.ItemID}), true
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
