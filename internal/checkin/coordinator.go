// Package checkin moves a chat user's bracket participant to checked in.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"roster-bot/internal/metrics"
	"roster-bot/internal/models"
	"roster-bot/internal/tournament"
)

// Linker resolves a chat identity to its external handles.
type Linker interface {
	Lookup(ctx context.Context, id models.ChatIdentity) (models.UserLink, error)
}

type Outcome int

const (
	RemoteFailure Outcome = iota
	Success
	NoMapping
	ParticipantNotFound
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NoMapping:
		return "no_mapping"
	case ParticipantNotFound:
		return "participant_not_found"
	default:
		return "remote_failure"
	}
}

type Result struct {
	Outcome Outcome
	Handle  string
	Message string
	Err     error
}

type Coordinator struct {
	linker   Linker
	provider tournament.Provider
	botName  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewCoordinator(linker Linker, provider tournament.Provider, botName string, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{linker: linker, provider: provider, botName: botName, logger: logger, metrics: m}
}

// CheckIn never returns an error: every failure, including a panic inside a
// collaborator, ends as a Result with a user-facing message.
func (c *Coordinator) CheckIn(ctx context.Context, id models.ChatIdentity, tournamentID string) (res Result) {
	log := c.logger.With(
		slog.String("chat_name", id.DisplayName),
		slog.String("tournament", tournamentID),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("check-in panicked", slog.Any("panic", r))
			res = c.remoteFailure(id.DisplayName, "", fmt.Errorf("%w: panic: %v", models.ErrTransport, r))
		}
		c.metrics.CheckIn(res.Outcome.String())
	}()

	link, err := c.linker.Lookup(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.noMapping(id.DisplayName)
	case err != nil:
		log.Error("lookup user link", slog.Any("error", err))
		return c.remoteFailure(id.DisplayName, "", err)
	case strings.TrimSpace(link.TournamentHandle) == "":
		return c.noMapping(id.DisplayName)
	}
	handle := link.TournamentHandle
	log = log.With(slog.String("handle", handle))

	participants, err := c.provider.ListParticipants(ctx, tournamentID)
	if err != nil {
		log.Error("list participants", slog.Any("error", err))
		return c.remoteFailure(id.DisplayName, handle, fmt.Errorf("%w: %w", models.ErrTransport, err))
	}

	var matches []models.Participant
	for _, p := range participants {
		if p.Handle == handle {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		log.Info("participant not registered")
		return Result{
			Outcome: ParticipantNotFound,
			Handle:  handle,
			Message: fmt.Sprintf("There was an error checking in Challonge user %s - they were not returned as registered for this tournament.", handle),
			Err:     fmt.Errorf("%w: participant %q", models.ErrNotFound, handle),
		}
	}
	if len(matches) > 1 {
		// Which entrant to pick is undecided; use the first one returned.
		log.Warn("several participants share handle",
			slog.Int("matches", len(matches)),
			slog.Any("error", models.ErrAmbiguous),
		)
		c.metrics.AmbiguousParticipant()
	}
	player := matches[0]

	after, err := c.provider.CheckIn(ctx, player.ID, tournamentID)
	if err != nil {
		log.Error("check in participant", slog.Int64("participant_id", player.ID), slog.Any("error", err))
		return c.remoteFailure(id.DisplayName, handle, fmt.Errorf("%w: %w", models.ErrTransport, err))
	}
	if !after.CheckedIn {
		log.Warn("participant still not checked in", slog.Int64("participant_id", player.ID))
		return c.remoteFailure(id.DisplayName, handle, fmt.Errorf("%w: participant %d", models.ErrStateMismatch, player.ID))
	}

	log.Info("participant checked in", slog.Int64("participant_id", player.ID))
	return Result{
		Outcome: Success,
		Handle:  handle,
		Message: fmt.Sprintf("Success! Challonge user %s (chat: %s) is checked in for the event!", handle, id.DisplayName),
	}
}

func (c *Coordinator) noMapping(chatName string) Result {
	return Result{
		Outcome: NoMapping,
		Message: fmt.Sprintf("Cannot check in %s as there is no mapped Challonge ID. Please use `/challonge mychallongeusername` to tell %s who you are in Challonge.", chatName, c.botName),
		Err:     fmt.Errorf("%w: no challonge handle for %q", models.ErrNotFound, chatName),
	}
}

func (c *Coordinator) remoteFailure(chatName, handle string, err error) Result {
	who := chatName
	if handle != "" {
		who = "Challonge user " + handle
	}
	return Result{
		Outcome: RemoteFailure,
		Handle:  handle,
		Message: fmt.Sprintf("There was an error checking in %s - please check in manually at Challonge.com", who),
		Err:     err,
	}
}
