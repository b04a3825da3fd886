package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	NewsAPIBaseURL string `envconfig:"NEWS_API_BASE_URL" default:"https://newsapi.org/v2"`
	NewsAPIKey     string `envconfig:"NEWS_API_KEY" required:"true"`

	CurrentsBaseURL string `envconfig:"CURRENTS_BASE_URL" default:"https://api.currentsapi.services/v1"`
	CurrentsAPIKey  string `envconfig:"CURRENTS_API_KEY"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Das Land, für das der Provider einen direkten Headline-Endpoint hat.
	HomeCountry string `envconfig:"HOME_COUNTRY" default:"us"`
	PageSize    int    `envconfig:"PAGE_SIZE" default:"20"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 */2 * * *"`
	CronSecret   string `envconfig:"CRON_SECRET"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	StaleWindow   time.Duration `envconfig:"STALE_WINDOW" default:"2h"`
	SweepDelay    time.Duration `envconfig:"SWEEP_DELAY" default:"300ms"`
	RefreshDelay  time.Duration `envconfig:"REFRESH_DELAY" default:"500ms"`
	DrainDelay    time.Duration `envconfig:"DRAIN_DELAY" default:"500ms"`
	SweepPageSize int           `envconfig:"SWEEP_PAGE_SIZE" default:"10"`
	DrainLimit    int           `envconfig:"DRAIN_LIMIT" default:"5"`

	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"2s"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
