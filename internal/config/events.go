package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"roster-bot/internal/cadence"
	"roster-bot/internal/models"
)

type eventsFile struct {
	Events []eventYAML `yaml:"events"`
}

type eventYAML struct {
	models.EventManifest `yaml:",inline"`
	AnchorWeekday        string `yaml:"anchor_weekday"`
}

// LoadEvents reads the event manifests from a YAML file.
func LoadEvents(path string) ([]models.EventManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return ParseEvents(data)
}

func ParseEvents(data []byte) ([]models.EventManifest, error) {
	var f eventsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	channels := map[string]bool{}
	out := make([]models.EventManifest, 0, len(f.Events))
	for i, e := range f.Events {
		m := e.EventManifest
		if m.Name == "" {
			m.Name = m.Channel
		}
		if m.Kind.Weekly() {
			m.AnchorWeekday = cadence.DefaultAnchor(m.Kind)
			if e.AnchorWeekday != "" {
				d, err := cadence.ParseWeekday(e.AnchorWeekday)
				if err != nil {
					return nil, fmt.Errorf("events[%d].anchor_weekday: %w", i, err)
				}
				m.AnchorWeekday = d
			}
		}
		if len(m.Layout.Fields) == 0 {
			m.Layout = DefaultLayout(m.Kind)
		}
		if m.Layout.Columns == "" {
			m.Layout.Columns = "A:E"
		}
		if err := validateEvent(m); err != nil {
			return nil, fmt.Errorf("events[%d] (%s): %w", i, m.Name, err)
		}
		// Chat titles are matched case-insensitively.
		key := strings.ToLower(m.Channel)
		if channels[key] {
			return nil, fmt.Errorf("events[%d]: channel %q configured twice", i, m.Channel)
		}
		channels[key] = true
		out = append(out, m)
	}
	return out, nil
}

// DefaultLayout is the column order used when a manifest names none. The
// second weekly event also records submission time and community handle.
// Every default layout ends with the attendance status.
func DefaultLayout(kind models.EventKind) models.Layout {
	if kind == models.KindWeeklyB {
		return models.Layout{
			Columns: "A:E",
			Fields: []string{
				models.FieldTimestamp,
				models.FieldChatName,
				models.FieldTeamLink,
				models.FieldCommunityHandle,
				models.FieldStatus,
			},
		}
	}
	return models.Layout{
		Columns: "A:E",
		Fields:  []string{models.FieldChatName, models.FieldTeamLink, models.FieldStatus},
	}
}

func validateEvent(m models.EventManifest) error {
	if strings.TrimSpace(m.Channel) == "" {
		return fmt.Errorf("channel is empty")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("kind %q is not one of weekly_a, weekly_b, monthly, standalone_bracket", m.Kind)
	}
	if strings.TrimSpace(m.SpreadsheetID) == "" {
		return fmt.Errorf("spreadsheet_id is empty")
	}
	if m.Kind == models.KindStandaloneBracket {
		if !m.Bracket() {
			return fmt.Errorf("tournament_id is required for standalone_bracket")
		}
		if strings.TrimSpace(m.Tab) == "" {
			return fmt.Errorf("tab is required for standalone_bracket")
		}
	}
	return m.Layout.Validate()
}

// MasterLayout is the column layout of the user link sheet.
func (c Config) MasterLayout() models.Layout {
	return models.Layout{
		Columns:    c.MasterColumns,
		HeaderRows: c.MasterHeaderRows,
		Fields: []string{
			models.FieldChatName,
			models.FieldTournamentHandle,
			models.FieldCommunityHandle,
		},
	}
}
