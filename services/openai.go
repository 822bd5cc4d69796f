package services

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
)

// OpenAIAnalyzer talks to an OpenAI-compatible chat completions
// endpoint. The base URL is configurable because production runs
// against an API gateway, not api.openai.com directly.
type OpenAIAnalyzer struct {
	client openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAIAnalyzer(apiKey, baseURL, model string, log zerolog.Logger) *OpenAIAnalyzer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAnalyzer{
		client: openai.NewClient(opts...),
		model:  model,
		log:    log,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, contractText string) Report {
	if r := rejectShort(contractText); r != nil {
		return *r
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(contractText)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		a.log.Error().Err(err).Msg("chat completion request failed")
		return errorReport("AI request failed: %v", err)
	}
	if len(completion.Choices) == 0 {
		return errorReport("AI returned an empty response")
	}

	var rep Report
	if err := decodeModelJSON(completion.Choices[0].Message.Content, &rep); err != nil {
		a.log.Error().Err(err).Msg("failed to parse model reply")
		return errorReport("AI returned malformed JSON: %v", err)
	}
	if rep.Err != "" {
		return Report{Err: rep.Err}
	}
	clampScore(&rep)
	return rep
}
