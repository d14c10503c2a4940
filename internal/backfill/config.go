package backfill

import (
	"log/slog"

	"dealflow/pkg/utils"
)

// FromConfig builds the web lookup described by cfg. It returns nil, nil
// when the backfill is disabled.
func FromConfig(cfg utils.BackfillConfig, logger *slog.Logger) (Lookup, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ext, err := NewGeminiExtractor(GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.ModelTimeout,
	})
	if err != nil {
		return nil, err
	}
	return NewWebLookup(NewDuckDuckGo(cfg.SearchTimeout), NewPageScraper(cfg.ScrapeTimeout), ext, logger), nil
}
