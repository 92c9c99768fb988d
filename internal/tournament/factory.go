package tournament

import (
	"fmt"
	"log/slog"

	"roster-bot/internal/config"
	"roster-bot/internal/models"
	"roster-bot/internal/tournament/challonge"
	"roster-bot/internal/tournament/stub"
)

func NewProvider(cfg config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.TournamentProvider {
	case "challonge":
		if cfg.ChallongeAPIKey == "" {
			return nil, fmt.Errorf("%w: CHALLONGE_API_KEY is empty", models.ErrNotConfigured)
		}
		return challonge.New(cfg.ChallongeAPIKey,
			challonge.WithRateLimit(cfg.ChallongeRPS, 1),
			challonge.WithLogger(logger),
		), nil
	case "stub":
		return stub.New(), nil
	default:
		return nil, fmt.Errorf("unknown tournament provider: %s", cfg.TournamentProvider)
	}
}
