package facts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"newsfacts/config"
	"newsfacts/retry"
)

// Sentinel-Antworten für weiche Degradation: sie sind gültige Ergebnisse,
// keine Fehler, und werden wie normale Zusammenfassungen gespeichert.
const (
	SentinelNoContent = "No content available for fact extraction."
	SentinelNoFacts   = "Unable to extract facts from this article."
)

// extractionPrompt ist die feste System-Instruktion für die neutrale
// Umformulierung. Sie wird dem Artikeltext vorangestellt.
const extractionPrompt = `You are an unbiased news rewriter. Your task is to rewrite the given news article as a neutral, factual summary that removes all bias, opinion, and editorializing while preserving the complete story.

## Your Task:
Rewrite the article as a clear, readable summary that:
- Presents the facts in a narrative format (not bullet points)
- Maintains the flow and context of the story
- Covers all the key information: WHO, WHAT, WHEN, WHERE, WHY, HOW
- Is written in neutral, objective journalistic tone

## Remove:
- Opinion language ("experts believe", "critics say", "many think", "sources claim")
- Emotional/sensationalist words ("shocking", "devastating", "incredible", "slammed", "blasted")
- Political bias or loaded framing
- Speculation and predictions presented as fact
- Editorializing and commentary

## Keep:
- All factual information (dates, names, numbers, locations, events)
- Direct quotes (clearly attributed)
- Context necessary to understand the story
- Multiple perspectives if factually reported (without editorial framing)

## Output Format:
Write 2-4 paragraphs that summarize the article factually. Use clear, simple language. If certain claims are unverified, note them as "reportedly" or "according to [source]".

Now rewrite this article as an unbiased factual summary:`

// batchGroupSize und batchGroupDelay begrenzen die Parallelität gegen das
// Modell: 5 gleichzeitige Aufrufe pro Gruppe, 1s Pause zwischen Gruppen.
const (
	batchGroupSize  = 5
	batchGroupDelay = time.Second
)

// Extractor kapselt den Modell-Aufruf für die Fakten-Extraktion.
type Extractor struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	logger   *zap.Logger
	retryCfg retry.Config

	// generate ist der rohe Modell-Aufruf; in Tests austauschbar.
	// Liefert "" ohne Fehler, wenn das Modell keine verwertbare
	// Textantwort produziert hat (weich), einen Fehler nur bei
	// Transport-/Auth-/Modellfehlern (hart).
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewExtractor erstellt einen Extractor mit Gemini-Backend.
func NewExtractor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	e := &Extractor{
		client: client,
		model:  client.GenerativeModel(cfg.GeminiModel),
		logger: logger,
		retryCfg: retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
		},
	}
	e.generate = e.generateGemini
	return e, nil
}

// Close gibt den Gemini-Client frei.
func (e *Extractor) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

// ExtractFacts schreibt einen Artikeltext als neutrale Zusammenfassung um.
// Leerer Input liefert sofort die Sentinel-Antwort ohne Modell-Aufruf;
// eine leere Modellantwort degradiert weich zum "unable to extract"-
// Sentinel. Nur der Aufruf selbst kann hart fehlschlagen.
func (e *Extractor) ExtractFacts(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return SentinelNoContent, nil
	}

	prompt := extractionPrompt + "\n\n---\n\n" + content

	var out string
	err := retry.Do(ctx, e.retryCfg, func() error {
		text, err := e.generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fact extraction call failed: %w", err)
	}

	if strings.TrimSpace(out) == "" {
		return SentinelNoFacts, nil
	}
	return out, nil
}

// generateGemini führt genau einen Completion-Request aus.
func (e *Extractor) generateGemini(ctx context.Context, prompt string) (string, error) {
	resp, err := e.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// BatchItem ist ein (ID, Text)-Paar für die Batch-Extraktion.
type BatchItem struct {
	ID      uint
	Content string
}

// ExtractBatch verarbeitet Artikel in Gruppen von fünf gleichzeitigen
// Modell-Aufrufen mit einer Sekunde Pause zwischen den Gruppen. Fehler
// einzelner Artikel werden geloggt und übersprungen; das Ergebnis enthält
// nur erfolgreiche Zusammenfassungen.
func (e *Extractor) ExtractBatch(ctx context.Context, items []BatchItem) map[uint]string {
	results := make(map[uint]string, len(items))
	var mu sync.Mutex

	for start := 0; start < len(items); start += batchGroupSize {
		end := start + batchGroupSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item BatchItem) {
				defer wg.Done()
				facts, err := e.ExtractFacts(ctx, item.Content)
				if err != nil {
					e.logger.Warn("Batch-Extraktion für Artikel fehlgeschlagen",
						zap.Uint("id", item.ID), zap.Error(err))
					return
				}
				mu.Lock()
				results[item.ID] = facts
				mu.Unlock()
			}(item)
		}
		wg.Wait()

		if end < len(items) {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(batchGroupDelay):
			}
		}
	}
	return results
}
