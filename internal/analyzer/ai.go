package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
)

const (
	defaultAIModel = "claude-sonnet-4-20250514"

	// aiTextLimit truncates gazette text before sending; whole gazettes run
	// to hundreds of pages and the classification signal sits up front.
	aiTextLimit = 12000

	aiSystemPrompt = `Você analisa textos de diários oficiais municipais brasileiros.
Identifique documentos relacionados a concursos públicos e responda somente com JSON:
{"documentType": "<edital_abertura|edital_retificacao|convocacao|homologacao|prorrogacao|cancelamento|resultado_parcial|gabarito|nao_classificado>", "confidence": <0..1>, "reasoning": "<uma frase>"}`
)

// AIAnalyzer asks Claude for a second opinion on the document type. It is an
// optional plug point: the pattern-based classifier stays authoritative, and
// the AI finding is merged alongside with its own confidence.
type AIAnalyzer struct {
	client anthropic.Client
	model  string
	logger arbor.ILogger
}

// NewAIAnalyzer builds the Claude-backed analyzer
func NewAIAnalyzer(apiKey, model string, logger arbor.ILogger) (*AIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required for the ai analyzer")
	}
	if model == "" {
		model = defaultAIModel
	}
	return &AIAnalyzer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}, nil
}

// Name implements Analyzer
func (a *AIAnalyzer) Name() string { return "ai" }

// aiVerdict is the JSON shape the model is instructed to return
type aiVerdict struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Analyze implements Analyzer
func (a *AIAnalyzer) Analyze(ctx context.Context, ocr models.OCRResult) ([]models.Finding, error) {
	text := ocr.Text
	if len(text) > aiTextLimit {
		text = text[:aiTextLimit]
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		System:    []anthropic.TextBlockParam{{Text: aiSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude request: %w", err)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	verdict, err := parseAIVerdict(raw.String())
	if err != nil {
		return nil, err
	}
	if !knownDocumentType(verdict.DocumentType) {
		return nil, fmt.Errorf("model returned unknown document type %q", verdict.DocumentType)
	}

	return []models.Finding{{
		Type:       verdict.DocumentType,
		Confidence: clamp01(verdict.Confidence),
		Data: map[string]any{
			"source":    "ai",
			"reasoning": verdict.Reasoning,
		},
	}}, nil
}

// parseAIVerdict tolerates the model wrapping its JSON in prose or fences
func parseAIVerdict(s string) (aiVerdict, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return aiVerdict{}, fmt.Errorf("no json object in model response")
	}
	var verdict aiVerdict
	if err := json.Unmarshal([]byte(s[start:end+1]), &verdict); err != nil {
		return aiVerdict{}, fmt.Errorf("decode model response: %w", err)
	}
	return verdict, nil
}

func knownDocumentType(s string) bool {
	if s == string(models.DocNaoClassificado) {
		return true
	}
	for _, t := range models.DocumentTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
