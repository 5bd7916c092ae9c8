package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Agent builds prompts for an item, composes the request and runs it
// through the model client.
type Agent struct {
	client    Client
	fields    []Field
	templates Templates
	opts      ComposeOptions
	fallback  string
}

// AgentOptions configures an Agent. Zero values fall back to the defaults.
type AgentOptions struct {
	Fields           []Field
	Templates        Templates
	Compose          ComposeOptions
	FallbackCategory string
}

func NewAgent(client Client, opts AgentOptions) (*Agent, error) {
	if client == nil {
		return nil, errors.New("model client is required")
	}
	if opts.Compose.Model == "" {
		return nil, errors.New("model is required")
	}
	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" || seen[f.Name] {
			return nil, fmt.Errorf("invalid or duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return &Agent{
		client:    client,
		fields:    fields,
		templates: opts.Templates,
		opts:      opts.Compose,
		fallback:  opts.FallbackCategory,
	}, nil
}

// Fields returns the schema the agent requests.
func (a *Agent) Fields() []Field {
	return a.fields
}

// Generate runs prompt building, composition and the provider call. A
// composition failure (no image) is returned as a failed result without any
// network call.
func (a *Agent) Generate(ctx context.Context, item ContentItem) GenerationResult {
	set := BuildPromptSet(item, a.fields, a.templates, a.fallback)
	req, err := Compose(item, set, a.opts)
	if err != nil {
		reason := ReasonOf(err)
		if reason == "" {
			reason = ReasonInvalidConfig
		}
		return failure(reason, fmt.Sprintf("compose request: %v", err))
	}

	log.Debug().Int64("item_id", item.ID).Str("context", set.Context).Msg("Composed generation request")
	return a.client.Generate(ctx, req)
}
