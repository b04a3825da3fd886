package providers

import (
	"context"

	"newsfacts/models"
)

// Provider ist das Interface, das jeder Headline-Provider (z.B. NewsAPI,
// CurrentsAPI) implementieren muss.
type Provider interface {
	// FetchHeadlines holt Schlagzeilen für eine Rubrik und ein Land und gibt
	// sie als standardisierte Article-Modelle zurück (processed=false,
	// facts_only leer; ID und Timestamps vergibt der Store).
	FetchHeadlines(ctx context.Context, category, country string, pageSize, page int) ([]*models.Article, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "newsapi").
	Name() string
}
