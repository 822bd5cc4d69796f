package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GeminiAnalyzer is the alternative provider, selected with
// AI_PROVIDER=gemini.
type GeminiAnalyzer struct {
	apiKey string
	model  string
	log    zerolog.Logger
}

func NewGeminiAnalyzer(apiKey, model string, log zerolog.Logger) *GeminiAnalyzer {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAnalyzer{apiKey: apiKey, model: model, log: log}
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, contractText string) Report {
	if r := rejectShort(contractText); r != nil {
		return *r
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		a.log.Error().Err(err).Msg("failed to create Gemini client")
		return errorReport("AI request failed: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.GenerationConfig.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(systemPrompt+"\n\n"+buildPrompt(contractText)))
	if err != nil {
		a.log.Error().Err(err).Msg("Gemini request failed")
		return errorReport("AI request failed: %v", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return errorReport("AI returned an empty response")
	}

	var rep Report
	raw := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	if err := decodeModelJSON(raw, &rep); err != nil {
		a.log.Error().Err(err).Msg("failed to parse model reply")
		return errorReport("AI returned malformed JSON: %v", err)
	}
	if rep.Err != "" {
		return Report{Err: rep.Err}
	}
	clampScore(&rep)
	return rep
}
