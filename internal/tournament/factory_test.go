package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster-bot/internal/config"
	"roster-bot/internal/models"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.Config{TournamentProvider: "stub"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	p, err = NewProvider(config.Config{TournamentProvider: "challonge", ChallongeAPIKey: "k", ChallongeRPS: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "challonge", p.Name())

	_, err = NewProvider(config.Config{TournamentProvider: "challonge"}, nil)
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	_, err = NewProvider(config.Config{TournamentProvider: "smash.gg"}, nil)
	assert.Error(t, err)
}
