package currents

import "time"

// Response ist die Top-Level-Struktur der CurrentsAPI-Antwort.
type Response struct {
	Status string       `json:"status"`
	News   []RawArticle `json:"news"`
}

// RawArticle repräsentiert einen einzelnen Artikel in der API-Antwort.
type RawArticle struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	Image       string   `json:"image"`
	Language    string   `json:"language"`
	Category    []string `json:"category"`
	Published   string   `json:"published"`
}

// parsePublished parst das CurrentsAPI-Datumsformat ("2006-01-02 15:04:05 -0700").
func parsePublished(s string) *time.Time {
	layouts := []string{"2006-01-02 15:04:05 -0700", time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
