package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"newsfacts/models"
	"newsfacts/storage"
)

// fakeFactExtractor delegiert an eine Test-Funktion und zählt Aufrufe.
type fakeFactExtractor struct {
	fn    func(content string) (string, error)
	calls int32
}

func (f *fakeFactExtractor) ExtractFacts(ctx context.Context, content string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(content)
}

func newTestExtract(store *memStore, extractor *fakeFactExtractor, backfill *BackfillService) *ExtractService {
	s := NewExtractService(testConfig(), store, extractor, backfill, zap.NewNop())
	s.sleep = func(time.Duration) {}
	return s
}

func TestExtractArticlePersistsFacts(t *testing.T) {
	store := newMemStore()
	id := store.seed(models.Article{
		Title:           "Budget passed",
		URL:             "https://example.com/budget",
		OriginalContent: "The parliament passed the annual budget on Monday.",
	})
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		return "Neutral summary of the budget vote.", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	facts, cached, err := svc.ExtractArticle(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("first extraction must not be a cache hit")
	}
	if facts != "Neutral summary of the budget vote." {
		t.Errorf("unexpected facts: %q", facts)
	}

	row, _ := store.GetByID(id)
	if !row.Processed || row.FactsOnly == nil || *row.FactsOnly != facts {
		t.Errorf("facts and processed flag must be persisted together, got %+v", row)
	}
}

func TestExtractArticleIdempotent(t *testing.T) {
	store := newMemStore()
	existing := "Already extracted summary."
	id := store.seed(models.Article{
		Title:           "Done already",
		URL:             "https://example.com/done",
		OriginalContent: "body",
		Processed:       true,
		FactsOnly:       &existing,
	})
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		return "should not be called", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	facts, cached, err := svc.ExtractArticle(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Error("processed article must be a cache hit")
	}
	if facts != existing {
		t.Errorf("expected stored facts back, got %q", facts)
	}
	if atomic.LoadInt32(&extractor.calls) != 0 {
		t.Errorf("model must not be called for processed articles, got %d calls", extractor.calls)
	}
}

func TestExtractArticleUnknownID(t *testing.T) {
	store := newMemStore()
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		return "", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	_, _, err := svc.ExtractArticle(context.Background(), 42)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractArticleStoreFailureIsAnError(t *testing.T) {
	store := newMemStore()
	id := store.seed(models.Article{
		Title:           "Unsaveable",
		URL:             "https://example.com/unsaveable",
		OriginalContent: "body",
	})
	store.failUpdateFacts = true
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		return "summary", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	_, _, err := svc.ExtractArticle(context.Background(), id)
	if err == nil {
		t.Fatal("a failed facts write must surface as an error, not success")
	}
	if !strings.Contains(err.Error(), "saving extracted facts") {
		t.Errorf("unexpected error: %v", err)
	}

	row, _ := store.GetByID(id)
	if row.Processed {
		t.Error("article must stay unprocessed when the write fails")
	}
}

func TestExtractArticleFallsBackToTitle(t *testing.T) {
	store := newMemStore()
	id := store.seed(models.Article{
		Title: "Only a headline",
		URL:   "https://example.com/headline",
	})
	var seen string
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		seen = content
		return "summary", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	if _, _, err := svc.ExtractArticle(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if seen != "Only a headline" {
		t.Errorf("expected title as extraction input, got %q", seen)
	}
}

func TestExtractArticleRejectsConcurrentRun(t *testing.T) {
	store := newMemStore()
	id := store.seed(models.Article{
		Title:           "Slow one",
		URL:             "https://example.com/slow",
		OriginalContent: "body",
	})

	started := make(chan struct{})
	proceed := make(chan struct{})
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		close(started)
		<-proceed
		return "summary", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := svc.ExtractArticle(context.Background(), id)
		done <- err
	}()

	<-started
	_, _, err := svc.ExtractArticle(context.Background(), id)
	if !errors.Is(err, ErrExtractionInFlight) {
		t.Errorf("expected ErrExtractionInFlight, got %v", err)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first extraction must still succeed: %v", err)
	}

	// Nach Abschluss ist die ID wieder frei; der Cache-Hit greift.
	facts, cached, err := svc.ExtractArticle(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !cached || facts != "summary" {
		t.Errorf("expected cached facts after completion, got %q cached=%v", facts, cached)
	}
}

func TestExtractArticleRepairsTruncatedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article>
			<p>The city council approved the new transit plan after a lengthy session.</p>
			<p>Construction of the first line is scheduled to begin next spring downtown.</p>
			<p>Funding comes from a combination of federal grants and municipal bonds.</p>
		</article></body></html>`))
	}))
	defer srv.Close()

	store := newMemStore()
	id := store.seed(models.Article{
		Title:           "Transit plan",
		URL:             srv.URL + "/transit",
		OriginalContent: "The city council approved the new transit pl… [+2140 chars]",
	})

	var seen string
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		seen = content
		return "summary", nil
	}}
	backfill := NewBackfillService(testConfig(), store, zap.NewNop())
	svc := newTestExtract(store, extractor, backfill)

	if _, _, err := svc.ExtractArticle(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	if IsTruncated(seen) {
		t.Errorf("extraction must run on the repaired text, got %q", seen)
	}
	if !strings.Contains(seen, "municipal bonds") {
		t.Errorf("repaired text must come from the fetched page, got %q", seen)
	}

	row, _ := store.GetByID(id)
	if !row.Processed || row.FactsOnly == nil {
		t.Error("article must end up processed with facts after repair")
	}
	if IsTruncated(row.OriginalContent) {
		t.Error("stored content must be the backfilled full text")
	}
}

func TestExtractArticleDegradesWhenBackfillFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	store := newMemStore()
	truncated := "Start of a story that got cut off… [+900 chars]"
	id := store.seed(models.Article{
		Title:           "Cut off",
		URL:             srv.URL + "/gone",
		OriginalContent: truncated,
	})

	var seen string
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		seen = content
		return "summary from partial text", nil
	}}
	backfill := NewBackfillService(testConfig(), store, zap.NewNop())
	svc := newTestExtract(store, extractor, backfill)

	facts, _, err := svc.ExtractArticle(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if facts != "summary from partial text" {
		t.Errorf("extraction must still succeed on the truncated text, got %q", facts)
	}
	if seen != truncated {
		t.Errorf("expected the truncated text as fallback input, got %q", seen)
	}
}

func TestDrainContinuesPastFailures(t *testing.T) {
	store := newMemStore()
	for i, title := range []string{"first", "second", "third"} {
		content := "regular body text"
		if i == 1 {
			content = "poison"
		}
		store.seed(models.Article{
			Title:           title,
			URL:             "https://example.com/" + title,
			OriginalContent: content,
		})
	}
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		if content == "poison" {
			return "", errors.New("model refused")
		}
		return "summary", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	result := svc.Drain(context.Background(), 5)
	if result.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Total)
	}
	if result.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", result.Processed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "article 2") {
		t.Errorf("expected one error naming article 2, got %v", result.Errors)
	}
}

func TestDrainRespectsLimit(t *testing.T) {
	store := newMemStore()
	for _, title := range []string{"a", "b", "c", "d"} {
		store.seed(models.Article{
			Title:           title,
			URL:             "https://example.com/" + title,
			OriginalContent: "body",
		})
	}
	extractor := &fakeFactExtractor{fn: func(content string) (string, error) {
		return "summary", nil
	}}
	svc := newTestExtract(store, extractor, nil)

	result := svc.Drain(context.Background(), 2)
	if result.Total != 2 || result.Processed != 2 {
		t.Errorf("expected 2/2, got %d/%d", result.Processed, result.Total)
	}
	remaining, _ := store.GetUnprocessed(10)
	if len(remaining) != 2 {
		t.Errorf("expected 2 articles left unprocessed, got %d", len(remaining))
	}
}
