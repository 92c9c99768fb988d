package models

import (
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	KindWeeklyA           EventKind = "weekly_a"
	KindWeeklyB           EventKind = "weekly_b"
	KindMonthly           EventKind = "monthly"
	KindStandaloneBracket EventKind = "standalone_bracket"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindWeeklyA, KindWeeklyB, KindMonthly, KindStandaloneBracket:
		return true
	}
	return false
}

func (k EventKind) Weekly() bool {
	return k == KindWeeklyA || k == KindWeeklyB
}

// Field names usable in a Layout.
const (
	FieldTimestamp        = "timestamp"
	FieldChatName         = "chat_name"
	FieldTeamLink         = "team_link"
	FieldTournamentHandle = "tournament_handle"
	FieldCommunityHandle  = "community_handle"
	FieldStatus           = "status"
)

// Attendance values written to the status cell.
const (
	StatusHere    = "HERE"
	StatusDropped = "DROPPED"
)

// Layout describes where an event's rows live inside a tab.
type Layout struct {
	Columns    string   `yaml:"columns"`     // e.g. "A:E"
	HeaderRows int      `yaml:"header_rows"` // rows skipped when scanning
	Fields     []string `yaml:"fields"`      // cell order within a row
}

// IdentityColumn is the index of the chat name cell, or -1.
func (l Layout) IdentityColumn() int {
	return l.FieldIndex(FieldChatName)
}

func (l Layout) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// FirstColumn returns the leading column letter of Columns ("A" for "A:E").
func (l Layout) FirstColumn() string {
	first, _, _ := strings.Cut(l.Columns, ":")
	return strings.TrimSpace(first)
}

// Build orders values by the layout's fields. Missing values become "".
func (l Layout) Build(values map[string]string) RosterRecord {
	row := make(RosterRecord, len(l.Fields))
	for i, f := range l.Fields {
		row[i] = values[f]
	}
	return row
}

func (l Layout) Validate() error {
	if strings.TrimSpace(l.Columns) == "" {
		return fmt.Errorf("layout columns empty")
	}
	if l.HeaderRows < 0 {
		return fmt.Errorf("layout header_rows negative")
	}
	if l.IdentityColumn() < 0 {
		return fmt.Errorf("layout fields must include %q", FieldChatName)
	}
	return nil
}

// EventManifest is the static configuration of one event.
type EventManifest struct {
	Name          string       `yaml:"name"`
	Channel       string       `yaml:"channel"`
	Kind          EventKind    `yaml:"kind"`
	SpreadsheetID string       `yaml:"spreadsheet_id"`
	TournamentID  string       `yaml:"tournament_id"`
	AnchorWeekday time.Weekday `yaml:"-"`
	Tab           string       `yaml:"tab"`
	Layout        Layout       `yaml:"layout"`
}

func (m EventManifest) Bracket() bool {
	return strings.TrimSpace(m.TournamentID) != ""
}

// ChatIdentity is the sender of an inbound command.
type ChatIdentity struct {
	DisplayName string
	UserID      int64
}

// RosterRecord is one row of a tab.
type RosterRecord []string

func (r RosterRecord) Cell(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// UserLink maps a chat identity to its external handles.
type UserLink struct {
	ChatName         string
	TournamentHandle string
	CommunityHandle  string
}

// Participant is a tournament-service entrant.
type Participant struct {
	ID        int64
	Handle    string
	Name      string
	CheckedIn bool
}
