package storage

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsfacts/models"
)

// ErrNotFound wird zurückgegeben, wenn kein Artikel zur ID existiert.
var ErrNotFound = errors.New("article not found")

// Store ist der Persistenz-Vertrag, den die Orchestrierung konsumiert.
type Store interface {
	// GetByCategoryCountry liefert Artikel absteigend nach published_at.
	GetByCategoryCountry(category, country string, limit int) ([]models.Article, error)

	// DeleteByCategoryCountry löscht den gesamten Slice einer Rubrik+Land-
	// Kombination (Refresh verwirft alte Artikel en bloc, nie einzeln).
	DeleteByCategoryCountry(category, country string) error

	// GetByID liefert einen Artikel oder ErrNotFound.
	GetByID(id uint) (*models.Article, error)

	// UpsertByURL schreibt einen Artikel; eine URL-Kollision ist ein Update
	// und zählt als Refresh von Inhalt, Rubrik, Land und Timestamp.
	UpsertByURL(article *models.Article) (*models.Article, error)

	// UpdateFacts setzt facts_only und processed=true in einem Update.
	UpdateFacts(id uint, facts string) error

	// ReplaceContent ersetzt original_content und setzt den Artikel auf
	// unverarbeitet zurück (processed=false, facts_only=NULL), damit keine
	// Zusammenfassung den Text überlebt, aus dem sie nicht stammt.
	ReplaceContent(id uint, content string) error

	// GetUnprocessed liefert bis zu limit unverarbeitete Artikel,
	// absteigend nach published_at.
	GetUnprocessed(limit int) ([]models.Article, error)
}

// GormStore implementiert Store auf einer gorm-Datenbank.
type GormStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewGormStore erstellt einen neuen GormStore.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{DB: db, Logger: logger}
}

func (s *GormStore) GetByCategoryCountry(category, country string, limit int) ([]models.Article, error) {
	var articles []models.Article
	err := s.DB.
		Where("category = ? AND country = ?", category, country).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		s.Logger.Error("Artikel-Abfrage fehlgeschlagen",
			zap.String("category", category), zap.String("country", country), zap.Error(err))
		return nil, err
	}
	return articles, nil
}

func (s *GormStore) DeleteByCategoryCountry(category, country string) error {
	err := s.DB.
		Where("category = ? AND country = ?", category, country).
		Delete(&models.Article{}).Error
	if err != nil {
		s.Logger.Error("Löschen des Artikel-Slices fehlgeschlagen",
			zap.String("category", category), zap.String("country", country), zap.Error(err))
	}
	return err
}

func (s *GormStore) GetByID(id uint) (*models.Article, error) {
	var article models.Article
	if err := s.DB.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		s.Logger.Error("Artikel-Lookup fehlgeschlagen", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return &article, nil
}

func (s *GormStore) UpsertByURL(article *models.Article) (*models.Article, error) {
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.Assignments(map[string]any{
			"source_name":      article.SourceName,
			"author":           article.Author,
			"title":            article.Title,
			"original_content": article.OriginalContent,
			"image_url":        article.ImageURL,
			"published_at":     article.PublishedAt,
			"category":         article.Category,
			"country":          article.Country,
			// created_at ist die Staleness-Uhr; ein Re-Fetch derselben URL
			// zählt als Refresh.
			"created_at": gorm.Expr("NOW()"),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(article).Error
	if err != nil {
		s.Logger.Error("Artikel-Upsert fehlgeschlagen", zap.String("url", article.URL), zap.Error(err))
		return nil, err
	}

	// Im Konfliktfall trägt article nicht die ID der bestehenden Zeile;
	// die gespeicherte Zeile wird daher über die URL gelesen.
	var saved models.Article
	if err := s.DB.Where("url = ?", article.URL).First(&saved).Error; err != nil {
		s.Logger.Error("Gespeicherten Artikel nicht gefunden", zap.String("url", article.URL), zap.Error(err))
		return nil, err
	}
	return &saved, nil
}

func (s *GormStore) UpdateFacts(id uint, facts string) error {
	res := s.DB.Model(&models.Article{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"facts_only": facts,
			"processed":  true,
		})
	if res.Error != nil {
		s.Logger.Error("Fakten-Update fehlgeschlagen", zap.Uint("id", id), zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ReplaceContent(id uint, content string) error {
	res := s.DB.Model(&models.Article{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"original_content": content,
			"processed":        false,
			"facts_only":       nil,
		})
	if res.Error != nil {
		s.Logger.Error("Content-Ersetzung fehlgeschlagen", zap.Uint("id", id), zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUnprocessed(limit int) ([]models.Article, error) {
	var articles []models.Article
	err := s.DB.
		Where("processed = ?", false).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		s.Logger.Error("Abfrage unverarbeiteter Artikel fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	return articles, nil
}
