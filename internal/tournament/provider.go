package tournament

import (
	"context"

	"roster-bot/internal/models"
)

// Provider is the bracket service the bot checks participants into.
type Provider interface {
	Name() string

	// ListParticipants returns every entrant of the tournament.
	ListParticipants(ctx context.Context, tournamentID string) ([]models.Participant, error)

	// CheckIn marks the participant checked in and returns its state afterwards.
	CheckIn(ctx context.Context, participantID int64, tournamentID string) (models.Participant, error)
}
