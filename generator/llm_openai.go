package generator

import (
	"context"
	"errors"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"
)

// OpenAIClient implements Client using the official openai-go SDK (chat completions
// with a json_schema response format).
type OpenAIClient struct {
	apiKey  string
	timeout time.Duration
	opts    []option.RequestOption
}

// NewOpenAIClient builds a client from settings. An empty API key is allowed
// here; Generate reports it as ReasonMissingCredentials without calling out.
func NewOpenAIClient(cfg LLMSettings) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// the SDK retries 5xx/429 by default; retry policy belongs to the caller.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{apiKey: cfg.APIKey, timeout: timeout, opts: opts}
}

func (o *OpenAIClient) Generate(ctx context.Context, req GenerationRequest) GenerationResult {
	if o.apiKey == "" {
		return failure(ReasonMissingCredentials, "openai api key missing")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client := openai.NewClient(o.opts...)
	params := buildParams(req)

	log.Debug().
		Str("model", req.Model).
		Str("image_url", req.ImageURL).
		Strs("fields", req.FieldNames()).
		Msg("Sending chat completion request")

	start := time.Now()
	var raw []byte
	_, err := client.Chat.Completions.New(ctx, params, option.WithResponseBodyInto(&raw))
	duration := time.Since(start)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error()
			}
			log.Warn().Int("status", apiErr.StatusCode).Dur("duration", duration).Str("message", msg).Msg("OpenAI returned an error")
			return failure(ReasonProviderError, msg)
		}
		log.Warn().Err(err).Dur("duration", duration).Msg("OpenAI request failed")
		return failure(ReasonTransport, err.Error())
	}

	log.Debug().Int("response_bytes", len(raw)).Dur("duration", duration).Msg("Chat completion received")
	return ParseCompletion(raw, req.FieldNames())
}

func buildParams(req GenerationRequest) openai.ChatCompletionNewParams {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Context),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    req.ImageURL,
			Detail: req.ImageDetail,
		}),
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.JSONSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}
