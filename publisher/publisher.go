package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"ai_art_description/access"
	"ai_art_description/generator"
)

// Request is one invocation of the workflow.
type Request struct {
	ItemID int64
	// Override skips the role check for trusted automated callers.
	Override bool
	// Actor holds the roles and capabilities of the interactive caller, if any.
	Actor access.Grants
}

// Outcome is what the caller reports on its own surface.
type Outcome struct {
	ItemID  int64             `json:"item_id"`
	Success bool              `json:"success"`
	Reason  generator.Reason  `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
	Written []string          `json:"written,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
	Partial bool              `json:"partial,omitempty"`
}

// Options configures a Publisher.
type Options struct {
	Policy          access.Policy
	RawResponseKey  string
	RequireCategory bool
}

// Publisher runs the description workflow for one item at a time: load,
// authorize, generate, distribute. It holds no per-item state, so one
// Publisher may serve concurrent invocations for different items.
type Publisher struct {
	store           Store
	agent           *generator.Agent
	policy          access.Policy
	destinations    DestinationMap
	requireCategory bool
}

// New creates a Publisher.
func New(store Store, agent *generator.Agent, opts Options) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("content store is required")
	}
	if agent == nil {
		return nil, errors.New("generator agent is required")
	}
	return &Publisher{
		store:           store,
		agent:           agent,
		policy:          opts.Policy,
		destinations:    DestinationsFor(agent.Fields(), opts.RawResponseKey),
		requireCategory: opts.RequireCategory,
	}, nil
}

// Store returns the content store the publisher writes to.
func (p *Publisher) Store() Store {
	return p.store
}

// GenerateDescription runs the whole workflow for req.ItemID. Every failure
// is reported in the Outcome; nothing is returned as an error.
func (p *Publisher) GenerateDescription(ctx context.Context, req Request) Outcome {
	start := time.Now()
	logger := log.With().Int64("item_id", req.ItemID).Bool("override", req.Override).Logger()
	logger.Info().Msg("Starting description generation")

	item, err := p.store.LoadItem(ctx, req.ItemID)
	if err != nil {
		reason := generator.ReasonStoreFailure
		if errors.Is(err, ErrNotFound) {
			reason = generator.ReasonItemNotFound
		}
		logger.Error().Err(err).Str("reason", string(reason)).Msg("Failed to load item")
		return fail(req.ItemID, reason, err.Error())
	}

	if !p.policy.AuthorizeItem(req.Actor, item.AuthorRoles, req.Override) {
		logger.Warn().Msg("Caller is not allowed to generate descriptions")
		return fail(req.ItemID, generator.ReasonUnauthorized, "missing required role or capability")
	}

	if p.requireCategory && item.Category == "" {
		logger.Warn().Msg("Item has no category")
		return fail(req.ItemID, generator.ReasonMissingCategory, "category could not be resolved")
	}

	result := p.agent.Generate(ctx, item)
	if !result.OK() {
		logger.Error().Str("reason", string(result.Reason)).Str("message", result.Message).Msg("Description generation failed")
		return fail(req.ItemID, result.Reason, result.Message)
	}

	d := Distribute(ctx, p.store, result, p.destinations, item.ID)
	out := Outcome{
		ItemID:  req.ItemID,
		Written: d.Written,
		Skipped: d.Skipped,
		Partial: len(d.Skipped) > 0 || len(d.Failed) > 0,
	}
	if len(d.Failed) > 0 {
		out.Failed = make(map[string]string, len(d.Failed))
		for field, err := range d.Failed {
			out.Failed[field] = err.Error()
		}
	}

	switch {
	case len(d.Written) == 0 && len(d.Failed) > 0:
		out.Reason = generator.ReasonStoreFailure
		out.Message = "no generated field could be written"
	case out.Partial:
		out.Success = true
		out.Reason = generator.ReasonPartialSuccess
		logger.Info().Strs("skipped", d.Skipped).Int("failed", len(d.Failed)).Msg("Some fields were not stored")
	default:
		out.Success = true
	}

	logger.Info().
		Bool("success", out.Success).
		Strs("written", d.Written).
		Int("failed", len(d.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Description generation finished")
	return out
}

func fail(id int64, reason generator.Reason, msg string) Outcome {
	return Outcome{ItemID: id, Reason: reason, Message: msg}
}
