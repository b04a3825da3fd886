package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"newsfacts/config"
	"newsfacts/models"
	"newsfacts/storage"
)

// ErrExtractionInFlight zeigt an, dass für den Artikel bereits eine
// Extraktion läuft. Es läuft höchstens eine Extraktion pro Artikel-ID.
var ErrExtractionInFlight = errors.New("extraction already in flight for this article")

// FactExtractor ist der Vertrag zum Umformulierungs-Modell.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, content string) (string, error)
}

// ExtractService treibt Artikel von "ingested" nach "fact-extracted" und
// kümmert sich dabei um die Reparatur gekürzter Texte.
type ExtractService struct {
	Config    *config.Config
	Store     storage.Store
	Logger    *zap.Logger
	Extractor FactExtractor
	Backfill  *BackfillService

	mu       sync.Mutex
	inFlight map[uint]struct{}

	// sleep ist in Tests austauschbar, um die Pacing-Delays zu überspringen.
	sleep func(time.Duration)
}

// NewExtractService erstellt einen neuen ExtractService.
func NewExtractService(cfg *config.Config, store storage.Store, extractor FactExtractor, backfill *BackfillService, logger *zap.Logger) *ExtractService {
	return &ExtractService{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		Extractor: extractor,
		Backfill:  backfill,
		inFlight:  make(map[uint]struct{}),
		sleep:     time.Sleep,
	}
}

// DrainResult fasst einen Batch-Durchlauf über unverarbeitete Artikel
// zusammen.
type DrainResult struct {
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors,omitempty"`
}

// ExtractArticle führt die Pipeline für einen einzelnen Artikel aus:
// Cache-Hit bei bereits verarbeiteten Artikeln (kein Modell-Aufruf),
// sonst Reparatur gekürzten Inhalts und anschließende Extraktion.
func (s *ExtractService) ExtractArticle(ctx context.Context, id uint) (facts string, cached bool, err error) {
	article, err := s.Store.GetByID(id)
	if err != nil {
		return "", false, err
	}
	return s.process(ctx, article, true)
}

// Drain zieht bis zu limit unverarbeitete Artikel und führt die Pipeline
// sequenziell mit festem Pacing aus. Einzelne Fehler werden als Strings
// gesammelt; der Batch läuft immer bis zum Ende.
func (s *ExtractService) Drain(ctx context.Context, limit int) DrainResult {
	result := DrainResult{}

	articles, err := s.Store.GetUnprocessed(limit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("loading unprocessed articles: %v", err))
		return result
	}
	result.Total = len(articles)

	for i := range articles {
		article := articles[i]
		if _, _, err := s.process(ctx, &article, false); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("article %d: %v", article.ID, err))
		} else {
			result.Processed++
		}

		if i < len(articles)-1 {
			s.sleep(s.Config.DrainDelay)
		}
	}

	s.Logger.Info("Drain abgeschlossen",
		zap.Int("processed", result.Processed),
		zap.Int("total", result.Total),
		zap.Int("errors", len(result.Errors)))
	return result
}

// process ist die Per-Artikel-Pipeline. repair steuert, ob gekürzter
// Inhalt vor der Extraktion über den Backfill repariert wird.
func (s *ExtractService) process(ctx context.Context, article *models.Article, repair bool) (string, bool, error) {
	// Idempotenz: bereits extrahierte Fakten werden ohne Modell-Aufruf
	// unverändert zurückgegeben.
	if article.Processed && article.FactsOnly != nil && *article.FactsOnly != "" {
		return *article.FactsOnly, true, nil
	}

	if !s.acquire(article.ID) {
		return "", false, ErrExtractionInFlight
	}
	defer s.release(article.ID)

	content := effectiveContent(article)

	if repair && s.Backfill != nil && IsTruncated(content) {
		if _, _, err := s.Backfill.EnsureFullContent(ctx, article); err != nil {
			// Weiche Degradation: Extraktion läuft auf dem gekürzten Text.
			s.Logger.Warn("Backfill fehlgeschlagen, extrahiere aus gekürztem Inhalt",
				zap.Uint("id", article.ID), zap.Error(err))
		}
		content = effectiveContent(article)
	}

	facts, err := s.Extractor.ExtractFacts(ctx, content)
	if err != nil {
		return "", false, err
	}

	if err := s.Store.UpdateFacts(article.ID, facts); err != nil {
		return "", false, fmt.Errorf("saving extracted facts: %w", err)
	}
	return facts, false, nil
}

// effectiveContent wählt den Extraktions-Input: original_content, sonst
// der Titel, damit immer irgendein Input vorhanden ist.
func effectiveContent(article *models.Article) string {
	if article.OriginalContent != "" {
		return article.OriginalContent
	}
	return article.Title
}

func (s *ExtractService) acquire(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *ExtractService) release(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
