package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/models"
)

const (
	// Anything shorter is almost certainly a scan without OCR or an
	// empty file; rejected before any external call.
	minContractChars = 50
	// Cap on the contract text sent to the model, for token safety.
	maxPromptChars = 15000
)

// Report is the analysis outcome. It is always well formed: transport
// or parse failures set Err (and leave Score at 0) instead of
// surfacing as Go errors, so the pipeline always gets a usable shape.
type Report struct {
	Score           int           `json:"score"`
	Summary         string        `json:"summary"`
	Risks           []models.Risk `json:"risks"`
	Recommendations []string      `json:"recommendations"`
	RewrittenText   string        `json:"rewritten_text,omitempty"`
	Err             string        `json:"error,omitempty"`
}

type Analyzer interface {
	Analyze(ctx context.Context, contractText string) Report
}

// NewAnalyzer builds the analyzer the configuration asks for. Without
// an API key, or with AI_MOCK set, the deterministic sample analyzer
// is returned so the rest of the pipeline works without credentials.
func NewAnalyzer(cfg config.Config, log zerolog.Logger) Analyzer {
	if cfg.AIMock || cfg.AIAPIKey == "" {
		log.Info().Msg("AI credentials not configured, using mock analyzer")
		return &MockAnalyzer{}
	}
	if cfg.AIProvider == "gemini" {
		return NewGeminiAnalyzer(cfg.AIAPIKey, cfg.AIModel, log)
	}
	return NewOpenAIAnalyzer(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, log)
}

func errorReport(format string, args ...interface{}) Report {
	return Report{Err: fmt.Sprintf(format, args...)}
}

// rejectShort returns a non-nil error report for text below the
// minimum analysable length.
func rejectShort(text string) *Report {
	if utf8.RuneCountInString(text) < minContractChars {
		r := errorReport("text is too short or empty, likely a scan without OCR")
		return &r
	}
	return nil
}

const systemPrompt = "You are a helpful legal assistant. Output valid JSON only."

// buildPrompt renders the fixed RU legal-review prompt around the
// contract text.
func buildPrompt(contractText string) string {
	// Limits count characters, not bytes: Cyrillic contracts are two
	// bytes per character, and a byte slice could split a rune.
	if utf8.RuneCountInString(contractText) > maxPromptChars {
		runes := []rune(contractText)
		contractText = string(runes[:maxPromptChars])
	}
	return "Ты профессиональный юрист по недвижимости РФ. " +
		"Проанализируй этот текст договора аренды/купли-продажи. " +
		"Твоя задача: найти скрытые риски, невыгодные условия и 'токсичные' пункты для клиента. " +
		"Сфокусируйся на: праве одностороннего расторжения, штрафах, скрытых комиссиях, индексации цены. " +
		"\n\n" +
		"Формат ответа JSON: " +
		"{" +
		"  'score': (число 0-100, где 100 - безопасно), " +
		"  'summary': 'Краткое резюме (1-2 предложения)', " +
		"  'risks': [" +
		"    {'title': 'Название риска', 'description': 'Описание', 'severity': 'high/medium/low'}" +
		"  ], " +
		"  'recommendations': ['Совет 1', 'Совет 2'], " +
		"  'rewritten_text': 'Исправленный текст договора с устранёнными рисками'" +
		"}" +
		"\n\n" +
		"Текст договора:\n" + contractText
}

// decodeModelJSON unmarshals a model reply that may be wrapped in
// markdown code fences or surrounded by commentary.
func decodeModelJSON(raw string, dest interface{}) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return fmt.Errorf("no JSON object in model reply")
		}
		s = s[start : end+1]
	}
	return json.Unmarshal([]byte(s), dest)
}

func clampScore(rep *Report) {
	if rep.Score < 0 {
		rep.Score = 0
	}
	if rep.Score > 100 {
		rep.Score = 100
	}
}

// MockAnalyzer returns a fixed sample report. Used whenever live AI
// credentials are absent, and in tests.
type MockAnalyzer struct{}

func (m *MockAnalyzer) Analyze(_ context.Context, contractText string) Report {
	if r := rejectShort(contractText); r != nil {
		return *r
	}
	return Report{
		Score:   85,
		Summary: "Договор в целом безопасен, найдено два спорных пункта.",
		Risks: []models.Risk{
			{
				Title:       "Одностороннее расторжение",
				Description: "Арендодатель может расторгнуть договор без объяснения причин с уведомлением за 14 дней.",
				Severity:    "medium",
			},
			{
				Title:       "Индексация цены",
				Description: "Цена может быть повышена в одностороннем порядке раз в год без ограничения процента.",
				Severity:    "low",
			},
		},
		Recommendations: []string{
			"Зафиксируйте максимальный процент индексации цены.",
			"Согласуйте симметричное право расторжения для обеих сторон.",
		},
		RewrittenText: "Стороны вправе расторгнуть договор с уведомлением за 30 дней. " +
			"Индексация цены не превышает 5% в год и согласуется письменно.",
	}
}
