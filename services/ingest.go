package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newsfacts/config"
	"newsfacts/models"
	"newsfacts/providers"
	"newsfacts/storage"
)

// IngestService hält den Store mit frischen Schlagzeilen pro Rubrik und
// Land gefüllt. Provider werden in Reihenfolge probiert; das erste
// nicht-leere Ergebnis gewinnt.
type IngestService struct {
	Config    *config.Config
	Store     storage.Store
	Logger    *zap.Logger
	Providers []providers.Provider

	// sleep ist in Tests austauschbar, um die Pacing-Delays zu überspringen.
	sleep func(time.Duration)
}

// NewIngestService erstellt einen neuen IngestService.
func NewIngestService(cfg *config.Config, store storage.Store, logger *zap.Logger, provs []providers.Provider) *IngestService {
	return &IngestService{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		Providers: provs,
		sleep:     time.Sleep,
	}
}

// SweepResult fasst einen Sweep-Durchlauf zusammen.
type SweepResult struct {
	Fetched int      `json:"fetched"`
	Errors  []string `json:"errors,omitempty"`
}

// GetOrRefresh liefert Artikel für eine Rubrik+Land-Kombination aus dem
// Cache, solange dieser nicht leer, nicht erzwungen und nicht älter als
// das Staleness-Fenster ist. Andernfalls wird der Slice verworfen und
// frisch vom Provider geholt.
func (s *IngestService) GetOrRefresh(ctx context.Context, category, country string, force bool) ([]models.Article, bool, error) {
	log := s.Logger.With(zap.String("category", category), zap.String("country", country))

	if !force {
		cached, err := s.Store.GetByCategoryCountry(category, country, s.Config.PageSize)
		if err != nil {
			// Lesefehler degradieren zum leeren Cache.
			cached = nil
		}

		if len(cached) > 0 && !s.isStale(cached) {
			return cached, true, nil
		}

		if len(cached) > 0 {
			if err := s.Store.DeleteByCategoryCountry(category, country); err != nil {
				log.Warn("Konnte veraltete Artikel nicht löschen", zap.Error(err))
			}
		}
	} else {
		if err := s.Store.DeleteByCategoryCountry(category, country); err != nil {
			log.Warn("Konnte Artikel für erzwungenen Refresh nicht löschen", zap.Error(err))
		}
	}

	fresh := s.fetch(ctx, category, country, s.Config.PageSize)
	saved := s.upsertAll(fresh)
	log.Info("Artikel frisch geladen", zap.Int("fetched", len(fresh)), zap.Int("saved", len(saved)))
	return saved, false, nil
}

// RefreshAll lädt alle Rubriken für ein Land neu und liefert die Anzahl
// gespeicherter Artikel pro Rubrik. Fehler einzelner Rubriken stoppen den
// Durchlauf nicht.
func (s *IngestService) RefreshAll(ctx context.Context, country string) map[string]int {
	counts := make(map[string]int, len(models.Categories))
	for i, category := range models.Categories {
		fresh := s.fetch(ctx, category, country, s.Config.PageSize)
		counts[category] = len(s.upsertAll(fresh))

		if i < len(models.Categories)-1 {
			s.sleep(s.Config.RefreshDelay)
		}
	}
	return counts
}

// Sweep ist der geplante Batch-Durchlauf über alle Rubriken eines Landes.
// Der bestehende Slice wird erst verworfen, wenn der Fetch Ergebnisse
// geliefert hat, damit ein Providerausfall keine leere Rubrik hinterlässt.
func (s *IngestService) Sweep(ctx context.Context, country string) SweepResult {
	result := SweepResult{}
	log := s.Logger.With(zap.String("country", country))
	log.Info("Starte Sweep über alle Rubriken")

	for i, category := range models.Categories {
		fresh, err := s.fetchChecked(ctx, category, country, s.Config.SweepPageSize)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch error for %s/%s: %v", category, country, err))
		} else if len(fresh) > 0 {
			if err := s.Store.DeleteByCategoryCountry(category, country); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("delete error for %s/%s: %v", category, country, err))
			}
			result.Fetched += len(s.upsertAll(fresh))
		}

		if i < len(models.Categories)-1 {
			s.sleep(s.Config.SweepDelay)
		}
	}

	log.Info("Sweep abgeschlossen", zap.Int("fetched", result.Fetched), zap.Int("errors", len(result.Errors)))
	return result
}

// fetch probiert die Provider der Reihe nach und gibt das erste nicht-leere
// Ergebnis zurück. Providerfehler werden geloggt und brechen nichts ab.
func (s *IngestService) fetch(ctx context.Context, category, country string, pageSize int) []*models.Article {
	articles, err := s.fetchChecked(ctx, category, country, pageSize)
	if err != nil {
		s.Logger.Warn("Headline-Fetch fehlgeschlagen",
			zap.String("category", category), zap.String("country", country), zap.Error(err))
		return nil
	}
	return articles
}

// fetchChecked wie fetch, gibt aber den letzten Providerfehler zurück,
// damit Batch-Aufrufer ihn als Fehlereintrag aufnehmen können.
func (s *IngestService) fetchChecked(ctx context.Context, category, country string, pageSize int) ([]*models.Article, error) {
	var lastErr error
	for _, p := range s.Providers {
		articles, err := p.FetchHeadlines(ctx, category, country, pageSize, 1)
		if err != nil {
			s.Logger.Warn("Provider-Fetch fehlgeschlagen",
				zap.String("provider", p.Name()),
				zap.String("category", category),
				zap.String("country", country),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(articles) > 0 {
			return articles, nil
		}
	}
	return nil, lastErr
}

// upsertAll schreibt alle Artikel per Upsert und liefert die gespeicherten
// Zeilen. Einzelne Schreibfehler werden geloggt und übersprungen.
func (s *IngestService) upsertAll(articles []*models.Article) []models.Article {
	saved := make([]models.Article, 0, len(articles))
	for _, article := range articles {
		row, err := s.Store.UpsertByURL(article)
		if err != nil {
			continue
		}
		saved = append(saved, *row)
	}
	return saved
}

// isStale prüft das jüngste created_at gegen das Staleness-Fenster.
// Exakt am Fenster gilt als stale.
func (s *IngestService) isStale(articles []models.Article) bool {
	if len(articles) == 0 {
		return true
	}
	newest := articles[0].CreatedAt
	for _, a := range articles[1:] {
		if a.CreatedAt.After(newest) {
			newest = a.CreatedAt
		}
	}
	return time.Since(newest) >= s.Config.StaleWindow
}
