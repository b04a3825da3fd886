package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"newsfacts/config"
	"newsfacts/models"
	"newsfacts/retry"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// categoryKeywords sind die Suchbegriff-Alternativen pro Rubrik für die
// Volltextsuche außerhalb des Heimatlandes. Für "general" bleibt die
// Query leer und es wird nur nach dem Landesnamen gesucht.
var categoryKeywords = map[string]string{
	"general":       "",
	"business":      `"stock market" OR "economy" OR "GDP" OR "inflation" OR "trade deal" OR "business"`,
	"technology":    `"artificial intelligence" OR "AI" OR "software" OR "tech company" OR "startup" OR "cybersecurity"`,
	"science":       `"scientists" OR "research study" OR "discovery" OR "NASA" OR "space" OR "climate change"`,
	"health":        `"healthcare" OR "medical" OR "disease" OR "virus" OR "hospital" OR "patients" OR "treatment" OR "vaccine"`,
	"sports":        `"cricket" OR "football" OR "tennis" OR "Olympics" OR "match" OR "tournament" OR "championship"`,
	"entertainment": `"movie" OR "film" OR "Bollywood" OR "Hollywood" OR "music" OR "concert" OR "actor" OR "actress"`,
}

// Fetcher implementiert das Provider-Interface für NewsAPI.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen NewsAPI-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "newsapi"
}

// FetchHeadlines holt Schlagzeilen für Rubrik und Land. Für das Heimatland
// wird der direkte top-headlines-Endpoint verwendet; für alle anderen
// Länder gibt es keinen Rubrik-Endpoint, daher fällt die Suche auf den
// everything-Endpoint mit Rubrik-Keywords und Landesnamen zurück.
func (f *Fetcher) FetchHeadlines(ctx context.Context, category, country string, pageSize, page int) ([]*models.Article, error) {
	var endpoint string
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("apiKey", f.Config.NewsAPIKey)

	if country == f.Config.HomeCountry {
		endpoint = "/top-headlines"
		params.Set("country", country)
		params.Set("category", category)
	} else {
		endpoint = "/everything"
		params.Set("q", buildSearchQuery(category, country))
		params.Set("sortBy", "publishedAt")
		params.Set("language", "en")
		// Nur Artikel der letzten 2 Tage
		from := time.Now().AddDate(0, 0, -2).Format("2006-01-02")
		params.Set("from", from)
	}

	raw, err := f.call(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	articles := make([]*models.Article, 0, len(raw))
	for i := range raw {
		if isPlaceholder(&raw[i]) {
			continue
		}
		articles = append(articles, Transform(&raw[i], category, country))
	}
	return articles, nil
}

// Search führt eine freie Volltextsuche über den everything-Endpoint aus.
// Die Ergebnisse werden ohne Rubrik/Land gespeichert.
func (f *Fetcher) Search(ctx context.Context, query string, pageSize, page int) ([]*models.Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("sortBy", "publishedAt")
	params.Set("apiKey", f.Config.NewsAPIKey)

	raw, err := f.call(ctx, "/everything", params)
	if err != nil {
		return nil, err
	}

	articles := make([]*models.Article, 0, len(raw))
	for i := range raw {
		if isPlaceholder(&raw[i]) {
			continue
		}
		articles = append(articles, Transform(&raw[i], "", ""))
	}
	return articles, nil
}

// call ruft einen NewsAPI-Endpoint mit Retry auf und dekodiert die Antwort.
func (f *Fetcher) call(ctx context.Context, endpoint string, params url.Values) ([]RawArticle, error) {
	requestURL := f.Config.NewsAPIBaseURL + endpoint + "?" + params.Encode()

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
			var apiErr Response
			_ = json.NewDecoder(httpResp.Body).Decode(&apiErr)
			if apiErr.Message != "" {
				return fmt.Errorf("newsapi: %s (%s)", apiErr.Message, httpResp.Status)
			}
			return fmt.Errorf("newsapi: unexpected status %s", httpResp.Status)
		}
		resp = Response{}
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("newsapi: decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q: %s", resp.Status, resp.Message)
	}

	f.Logger.Debug("NewsAPI-Antwort erhalten",
		zap.String("endpoint", endpoint),
		zap.Int("total_results", resp.TotalResults),
		zap.Int("returned", len(resp.Articles)))
	return resp.Articles, nil
}

// buildSearchQuery baut die everything-Query: Rubrik-Keywords AND-verknüpft
// mit dem Landesnamen als Phrase; für "general" nur der Landesname.
func buildSearchQuery(category, country string) string {
	countryName := models.CountryName(country)
	keywords := categoryKeywords[category]
	if keywords == "" {
		return fmt.Sprintf("%q", countryName)
	}
	return fmt.Sprintf("(%s) AND %q", keywords, countryName)
}

// isPlaceholder erkennt vom Provider entfernte/redigierte Einträge.
func isPlaceholder(raw *RawArticle) bool {
	return raw.Title == "" || raw.Title == "[Removed]"
}

// Transform konvertiert einen Provider-Artikel in unser internes
// Article-Modell. ID und created_at vergibt der Store.
func Transform(raw *RawArticle, category, country string) *models.Article {
	content := raw.Content
	if content == "" {
		content = raw.Description
	}
	return &models.Article{
		SourceName:      raw.Source.Name,
		Author:          raw.Author,
		Title:           raw.Title,
		URL:             raw.URL,
		OriginalContent: content,
		FactsOnly:       nil,
		ImageURL:        raw.URLToImage,
		PublishedAt:     parsePublished(raw.PublishedAt),
		Category:        category,
		Country:         country,
		Processed:       false,
	}
}
