package stub

import (
	"context"
	"fmt"
	"sync"

	"roster-bot/internal/models"
)

// Stub provider for local runs without a Challonge account:
// - participants live in memory, keyed by tournament
// - CheckIn flips the flag unless the participant was registered with Stuck

type Provider struct {
	mu     sync.Mutex
	nextID int64
	byTour map[string][]*entry
}

type entry struct {
	p     models.Participant
	stuck bool
}

func New() *Provider {
	return &Provider{nextID: 1, byTour: map[string][]*entry{}}
}

func (p *Provider) Name() string { return "stub" }

// Register adds an entrant and returns its id.
func (p *Provider) Register(tournamentID, handle string) int64 {
	return p.register(tournamentID, handle, false)
}

// RegisterStuck adds an entrant whose check-in never takes effect.
func (p *Provider) RegisterStuck(tournamentID, handle string) int64 {
	return p.register(tournamentID, handle, true)
}

func (p *Provider) register(tournamentID, handle string, stuck bool) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.byTour[tournamentID] = append(p.byTour[tournamentID], &entry{
		p:     models.Participant{ID: id, Handle: handle, Name: handle},
		stuck: stuck,
	})
	return id
}

func (p *Provider) ListParticipants(ctx context.Context, tournamentID string) ([]models.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Participant, 0, len(p.byTour[tournamentID]))
	for _, e := range p.byTour[tournamentID] {
		out = append(out, e.p)
	}
	return out, nil
}

func (p *Provider) CheckIn(ctx context.Context, participantID int64, tournamentID string) (models.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.byTour[tournamentID] {
		if e.p.ID != participantID {
			continue
		}
		if !e.stuck {
			e.p.CheckedIn = true
		}
		return e.p, nil
	}
	return models.Participant{}, fmt.Errorf("participant %d not in %s", participantID, tournamentID)
}
