package models

import (
	"time"
)

// Article repräsentiert eine Nachrichtenmeldung und deren Fakten-Zusammenfassung.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SourceName string `json:"source_name" gorm:"not null;default:''"`
	Author     string `json:"author,omitempty"`
	Title      string `json:"title" gorm:"not null"`

	// URL ist der Dedup-Schlüssel: ein Artikel pro URL, Kollisionen sind Updates.
	URL string `json:"url" gorm:"uniqueIndex;not null"`

	// OriginalContent kann vom Provider gekürzt sein ("[+N chars]"-Suffix).
	OriginalContent string `json:"original_content,omitempty" gorm:"type:text"`

	// FactsOnly bleibt NULL, bis die Extraktion erfolgreich war.
	FactsOnly *string `json:"facts_only" gorm:"type:text"`

	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	Category string `json:"category" gorm:"index:idx_articles_category_country"`
	Country  string `json:"country" gorm:"index:idx_articles_category_country"`

	Processed bool `json:"processed" gorm:"default:false;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}
