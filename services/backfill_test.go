package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"newsfacts/models"
)

func TestIsTruncated(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"", false},
		{"A complete short article.", false},
		{"The committee met on Tuesday to disc… [+1823 chars]", true},
		{"Body text [+42 chars]", true},
		// Nur eine Hälfte des Markers reicht nicht.
		{"Array access a[+1] in a code sample", false},
		{"we counted 1800 chars] somewhere", false},
	}
	for _, tc := range cases {
		if got := IsTruncated(tc.content); got != tc.want {
			t.Errorf("IsTruncated(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestHasFullContent(t *testing.T) {
	long := strings.Repeat("Ein vollständiger Satz mit genug Inhalt. ", 20)
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"long and complete", long, true},
		{"short", "Too short to count as complete.", false},
		{"long but truncated", long + " [+500 chars]", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasFullContent(tc.content); got != tc.want {
				t.Errorf("HasFullContent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnsureFullContentServesCompleteFromCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	store := newMemStore()
	full := strings.Repeat("A full paragraph of article text that stands on its own. ", 15)
	id := store.seed(models.Article{
		Title:           "Complete",
		URL:             srv.URL + "/complete",
		OriginalContent: full,
	})

	b := NewBackfillService(testConfig(), store, zap.NewNop())
	article, _ := store.GetByID(id)
	content, cached, err := b.EnsureFullContent(context.Background(), article)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Error("complete content must be a cache hit")
	}
	if content != full {
		t.Error("cached path must return the stored content unchanged")
	}
	if hits != 0 {
		t.Errorf("no network call expected for complete content, got %d", hits)
	}
}

func TestEnsureFullContentFetchesAndResetsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article>
			<p>Researchers published the full results of the decade-long study today.</p>
			<p>The findings confirm earlier measurements taken at the observatory site.</p>
			<p>A follow-up survey is planned for the coming year with new instruments.</p>
		</article></body></html>`))
	}))
	defer srv.Close()

	store := newMemStore()
	facts := "stale summary"
	id := store.seed(models.Article{
		Title:           "Study results",
		URL:             srv.URL + "/study",
		OriginalContent: "Researchers published the full res… [+1650 chars]",
		Processed:       true,
		FactsOnly:       &facts,
	})

	b := NewBackfillService(testConfig(), store, zap.NewNop())
	article, _ := store.GetByID(id)
	content, cached, err := b.EnsureFullContent(context.Background(), article)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("a fetched backfill is not a cache hit")
	}
	if !strings.Contains(content, "observatory site") {
		t.Errorf("expected extracted page text, got %q", content)
	}

	// Artikel in-memory und im Store zurückgesetzt: die alte Zusammenfassung
	// stammt nicht aus dem neuen Text und darf nicht überleben.
	if article.Processed || article.FactsOnly != nil {
		t.Error("article must be reset to unprocessed in memory")
	}
	row, _ := store.GetByID(id)
	if row.Processed || row.FactsOnly != nil {
		t.Error("article must be reset to unprocessed in the store")
	}
	if row.OriginalContent != content {
		t.Error("store must hold the backfilled content")
	}
}

func TestEnsureFullContentKeepsPriorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "paywall", http.StatusForbidden)
	}))
	defer srv.Close()

	store := newMemStore()
	truncated := "Behind a paywall unfortunat… [+3000 chars]"
	id := store.seed(models.Article{
		Title:           "Paywalled",
		URL:             srv.URL + "/paywalled",
		OriginalContent: truncated,
	})

	b := NewBackfillService(testConfig(), store, zap.NewNop())
	article, _ := store.GetByID(id)
	content, cached, err := b.EnsureFullContent(context.Background(), article)
	if err == nil {
		t.Fatal("expected an error for a failed fetch")
	}
	if cached {
		t.Error("a failed fetch is not a cache hit")
	}
	if content != truncated {
		t.Errorf("prior content must be returned as fallback, got %q", content)
	}
	row, _ := store.GetByID(id)
	if row.OriginalContent != truncated {
		t.Error("store must keep the prior content after a failed fetch")
	}
}

func TestGenericExtractFallsBackToBestSelector(t *testing.T) {
	html := `<html><body>
		<div class="post-content">
			<p>Only one usable paragraph lives under this selector here.</p>
		</div>
		<p>short</p>
	</body></html>`

	text, err := genericExtract(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "usable paragraph") {
		t.Errorf("expected the best partial result, got %q", text)
	}
}
