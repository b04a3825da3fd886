package currents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"newsfacts/config"
	"newsfacts/models"
	"newsfacts/retry"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// categoryMap bildet unsere Rubriken auf CurrentsAPI-Kategorien ab.
// Aktuell deckungsgleich, aber der Provider kennt weitere Kategorien.
var categoryMap = map[string]string{
	"general":       "general",
	"business":      "business",
	"technology":    "technology",
	"science":       "science",
	"health":        "health",
	"sports":        "sports",
	"entertainment": "entertainment",
}

// Fetcher implementiert das Provider-Interface für CurrentsAPI. Er dient
// als Fallback für Länder, für die NewsAPI keine Ergebnisse liefert.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen CurrentsAPI-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "currents"
}

// FetchHeadlines holt die neuesten Meldungen über den latest-news-Endpoint.
// CurrentsAPI paginiert nicht über page/pageSize, das Ergebnis wird daher
// clientseitig auf pageSize begrenzt.
func (f *Fetcher) FetchHeadlines(ctx context.Context, category, country string, pageSize, page int) ([]*models.Article, error) {
	categoryParam, ok := categoryMap[category]
	if !ok {
		categoryParam = "general"
	}

	params := url.Values{}
	params.Set("apiKey", f.Config.CurrentsAPIKey)
	params.Set("country", strings.ToUpper(country))
	params.Set("category", categoryParam)
	params.Set("language", "en")

	requestURL := f.Config.CurrentsBaseURL + "/latest-news?" + params.Encode()

	var resp Response
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: f.Config.RetryAttempts,
		Delay:       f.Config.RetryDelay,
		Backoff:     true,
	}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return err
		}
		httpResp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return fmt.Errorf("currentsapi: unexpected status %s", httpResp.Status)
		}
		resp = Response{}
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("currentsapi: decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	articles := make([]*models.Article, 0, len(resp.News))
	for i := range resp.News {
		raw := &resp.News[i]
		if raw.Title == "" || raw.URL == "" {
			continue
		}
		articles = append(articles, transform(raw, category, country))
		if pageSize > 0 && len(articles) >= pageSize {
			break
		}
	}

	f.Logger.Debug("CurrentsAPI-Antwort erhalten",
		zap.String("country", country),
		zap.String("category", category),
		zap.Int("returned", len(articles)))
	return articles, nil
}

// transform konvertiert einen CurrentsAPI-Artikel in unser internes Modell.
func transform(raw *RawArticle, category, country string) *models.Article {
	return &models.Article{
		SourceName:      sourceFromURL(raw.URL),
		Author:          raw.Author,
		Title:           raw.Title,
		URL:             raw.URL,
		OriginalContent: raw.Description,
		FactsOnly:       nil,
		ImageURL:        imageOrEmpty(raw.Image),
		PublishedAt:     parsePublished(raw.Published),
		Category:        category,
		Country:         country,
		Processed:       false,
	}
}

// sourceFromURL leitet einen Quellennamen aus dem Hostnamen ab, da
// CurrentsAPI keinen Quellennamen mitliefert.
func sourceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// imageOrEmpty filtert den "None"-Platzhalter von CurrentsAPI.
func imageOrEmpty(image string) string {
	if image == "None" {
		return ""
	}
	return image
}
