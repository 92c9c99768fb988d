package identity

import (
	"context"
	"fmt"
	"log/slog"

	"roster-bot/internal/models"
	"roster-bot/internal/roster"
)

// Mapper resolves chat identities against the master user sheet.
type Mapper struct {
	store  roster.Store
	master roster.Target
	logger *slog.Logger
}

func NewMapper(store roster.Store, master roster.Target, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{store: store, master: master, logger: logger}
}

// Master returns the sheet the mapper reads, for callers that write links.
func (m *Mapper) Master() roster.Target {
	return m.master
}

// Lookup finds the link row whose chat name equals id.DisplayName exactly.
// A missing row is models.ErrNotFound; a row with blank handles is returned
// as is.
func (m *Mapper) Lookup(ctx context.Context, id models.ChatIdentity) (models.UserLink, error) {
	values, err := m.store.ReadRange(ctx, m.master.SheetID, m.master.Tab, m.master.Layout.Columns)
	if err != nil {
		m.logger.Error("read master sheet",
			slog.String("chat_name", id.DisplayName),
			slog.Any("error", err),
		)
		return models.UserLink{}, fmt.Errorf("%w: read master sheet: %w", models.ErrTransport, err)
	}

	layout := m.master.Layout
	nameCol := layout.IdentityColumn()
	for i := layout.HeaderRows; i < len(values); i++ {
		row := models.RosterRecord(values[i])
		if row.Cell(nameCol) != id.DisplayName {
			continue
		}
		return models.UserLink{
			ChatName:         id.DisplayName,
			TournamentHandle: row.Cell(layout.FieldIndex(models.FieldTournamentHandle)),
			CommunityHandle:  row.Cell(layout.FieldIndex(models.FieldCommunityHandle)),
		}, nil
	}
	return models.UserLink{}, fmt.Errorf("%w: no link for %q", models.ErrNotFound, id.DisplayName)
}

// Row renders link in the master layout, ready for an upsert.
func (m *Mapper) Row(link models.UserLink) models.RosterRecord {
	return m.master.Layout.Build(map[string]string{
		models.FieldChatName:         link.ChatName,
		models.FieldTournamentHandle: link.TournamentHandle,
		models.FieldCommunityHandle:  link.CommunityHandle,
	})
}
