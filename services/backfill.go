package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"newsfacts/config"
	"newsfacts/models"
	"newsfacts/retry"
	"newsfacts/storage"
)

// Provider-Konvention für elidierten Inhalt: "... [+1234 chars]".
const (
	truncationMarker = "[+"
	truncationSuffix = "chars]"

	// Unterhalb dieser Länge gilt Inhalt nicht als vollständig, auch ohne
	// Kürzungsmarker.
	completeContentFloor = 500
)

// IsTruncated erkennt die Standard-Kürzungsnotation des Providers.
func IsTruncated(content string) bool {
	return strings.Contains(content, truncationMarker) && strings.Contains(content, truncationSuffix)
}

// HasFullContent prüft, ob ein Artikeltext bereits vollständig vorliegt
// und kein Netzwerkaufruf nötig ist.
func HasFullContent(content string) bool {
	return !IsTruncated(content) && len(content) > completeContentFloor
}

// BackfillService repariert gekürzte Artikeltexte, indem er das
// Originaldokument von der kanonischen URL lädt und extrahiert.
type BackfillService struct {
	Config *config.Config
	Store  storage.Store
	Logger *zap.Logger

	client *http.Client
}

// NewBackfillService erstellt einen neuen BackfillService.
func NewBackfillService(cfg *config.Config, store storage.Store, logger *zap.Logger) *BackfillService {
	return &BackfillService{
		Config: cfg,
		Store:  store,
		Logger: logger,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// EnsureFullContent liefert den vollständigen Artikeltext. Vollständiger
// Inhalt wird ohne Netzwerkaufruf zurückgegeben (cached=true). Bei
// erkannter Kürzung wird der Volltext geladen, persistiert und der Artikel
// auf unverarbeitet zurückgesetzt, damit keine Zusammenfassung auf dem
// alten Teiltext stehen bleibt. Schlägt die Extraktion fehl, bleibt der
// bisherige (gekürzte) Inhalt als Fallback-Wert erhalten und der Fehler
// geht an den Aufrufer.
func (b *BackfillService) EnsureFullContent(ctx context.Context, article *models.Article) (content string, cached bool, err error) {
	if HasFullContent(article.OriginalContent) {
		return article.OriginalContent, true, nil
	}

	log := b.Logger.With(zap.Uint("id", article.ID), zap.String("url", article.URL))
	log.Info("Lade Volltext für gekürzten Artikel")

	var extracted string
	err = retry.Do(ctx, retry.Config{
		MaxAttempts: b.Config.RetryAttempts,
		Delay:       b.Config.RetryDelay,
		Backoff:     true,
	}, func() error {
		text, fetchErr := b.extractFromURL(ctx, article.URL)
		if fetchErr != nil {
			return fetchErr
		}
		extracted = text
		return nil
	})
	if err != nil {
		log.Warn("Volltext-Extraktion fehlgeschlagen, behalte bisherigen Inhalt", zap.Error(err))
		return article.OriginalContent, false, err
	}
	if extracted == "" {
		log.Warn("Volltext-Extraktion lieferte keinen Text, behalte bisherigen Inhalt")
		return article.OriginalContent, false, fmt.Errorf("no extractable content at %s", article.URL)
	}

	if err := b.Store.ReplaceContent(article.ID, extracted); err != nil {
		return article.OriginalContent, false, fmt.Errorf("persisting backfilled content: %w", err)
	}

	article.OriginalContent = extracted
	article.Processed = false
	article.FactsOnly = nil

	log.Info("Volltext gespeichert", zap.Int("chars", len(extracted)))
	return extracted, false, nil
}

// extractFromURL lädt das Dokument und extrahiert den Artikeltext:
// zuerst über readability, bei leerem Ergebnis über generische
// Absatz-Selektoren.
func (b *BackfillService) extractFromURL(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newsfacts/1.0 (article backfill)")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(articleURL)
	if doc, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil {
		if text := cleanText(doc.TextContent); text != "" {
			return text, nil
		}
	}

	return genericExtract(bytes.NewReader(body))
}

// genericExtract sammelt Absätze über gängige Selektoren, wenn
// readability nichts liefert.
func genericExtract(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	selectors := []string{
		"article p",
		".article-body p",
		".post-content p",
		".entry-content p",
		"main p",
		"p",
	}

	var best []string
	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			return cleanText(strings.Join(paragraphs, " ")), nil
		}
		if len(paragraphs) > len(best) {
			best = paragraphs
		}
	}

	return cleanText(strings.Join(best, " ")), nil
}

// cleanText kollabiert Whitespace und trimmt.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
