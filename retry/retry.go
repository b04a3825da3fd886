package retry

import (
	"context"
	"fmt"
	"time"
)

// Config steuert das Wiederholungsverhalten für externe Aufrufe.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // linear wachsender Delay pro Versuch
}

// Do führt fn aus und wiederholt bei Fehlern bis MaxAttempts erreicht ist.
// Zwischen den Versuchen wird gewartet; ein abgebrochener Context beendet
// das Warten sofort.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := fn(); err != nil {
			if attempt == cfg.MaxAttempts {
				return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, err)
			}

			delay := cfg.Delay
			if cfg.Backoff {
				delay = time.Duration(attempt) * cfg.Delay
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil
	}
}
