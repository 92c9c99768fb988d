package tgbot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster-bot/internal/checkin"
	"roster-bot/internal/clock"
	"roster-bot/internal/identity"
	"roster-bot/internal/models"
	"roster-bot/internal/roster"
	"roster-bot/internal/roster/rostertest"
	"roster-bot/internal/tournament/stub"
	"roster-bot/internal/util"
)

type sent struct {
	chatID int64
	text   string
}

type FakeMessenger struct {
	sent    []sent
	deleted []int
}

func (f *FakeMessenger) SendText(chatID int64, text string) error {
	f.sent = append(f.sent, sent{chatID, text})
	return nil
}

func (f *FakeMessenger) DeleteMessage(chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *FakeMessenger) to(chatID int64) []string {
	var out []string
	for _, s := range f.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

const (
	groupChat = int64(-100)
	aliceID   = int64(7)
	adminID   = int64(42)
)

// Thursday.
var now = time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)

var events = []models.EventManifest{
	{
		Name: "Weekly Dice Arena", Channel: "weekly-dice-arena", Kind: models.KindWeeklyA,
		SpreadsheetID: "wda", AnchorWeekday: time.Tuesday,
		Layout: models.Layout{Columns: "A:E", Fields: []string{models.FieldChatName, models.FieldTeamLink}},
	},
	{
		Name: "Dice Fight", Channel: "dice-fight", Kind: models.KindWeeklyB,
		SpreadsheetID: "df", AnchorWeekday: time.Thursday,
		Layout: models.Layout{Columns: "A:E", Fields: []string{
			models.FieldTimestamp, models.FieldChatName, models.FieldTeamLink, models.FieldCommunityHandle,
		}},
	},
	{
		Name: "Spring Open", Channel: "spring-open", Kind: models.KindStandaloneBracket,
		SpreadsheetID: "open", TournamentID: "spring_open", Tab: "Signups",
		Layout: models.Layout{Columns: "A:E", Fields: []string{models.FieldChatName, models.FieldTeamLink}},
	},
	{
		Name: "Team of the Month", Channel: "team-of-the-month", Kind: models.KindMonthly,
		SpreadsheetID: "totm",
		Layout: models.Layout{Columns: "A:E", Fields: []string{models.FieldChatName, models.FieldTeamLink, models.FieldStatus}},
	},
}

var master = roster.Target{
	SheetID: "master",
	Tab:     "Users",
	Layout: models.Layout{
		Columns:    "A:C",
		HeaderRows: 1,
		Fields:     []string{models.FieldChatName, models.FieldTournamentHandle, models.FieldCommunityHandle},
	},
}

type fixture struct {
	store    *rostertest.MemStore
	provider *stub.Provider
	router   *Router
	out      *FakeMessenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := rostertest.NewMemStore()
	store.Seed("master", "Users", []string{"Chat Name", "Challonge", "Community"})
	provider := stub.New()

	engine := roster.NewEngine(store, logger)
	mapper := identity.NewMapper(store, master, logger)
	coord := checkin.NewCoordinator(mapper, provider, "RosterBot", logger, nil)

	r := NewRouter(RouterConfig{
		BotName:      "RosterBot",
		AdminIDs:     map[int64]bool{adminID: true},
		HTTPAddr:     ":8080",
		ExportSecret: "s3cret",
	}, events, engine, mapper, coord, clock.NewFixed(now), logger, nil)

	return &fixture{store: store, provider: provider, router: r, out: &FakeMessenger{}}
}

func (f *fixture) say(t *testing.T, chat, text string) []string {
	t.Helper()
	f.out.sent = nil
	in := Inbound{ChatID: groupChat, ChatTitle: chat, MessageID: 99, Text: text, From: Sender{UserID: aliceID, DisplayName: "alice"}}
	require.NoError(t, f.router.Handle(context.Background(), in, f.out))
	return f.out.to(groupChat)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"/submit http://x", "submit", []string{"http://x"}, true},
		{"/Submit@RosterBot http://x", "submit", []string{"http://x"}, true},
		{".win  alice#1 ", "win", []string{"alice#1"}, true},
		{"!here", "here", []string{}, true},
		{"hello there", "", nil, false},
		{"/", "", nil, false},
		{"   ", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := parseCommand(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			if tt.wantOK {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestSubmitAddsThenUpdates(t *testing.T) {
	f := newFixture(t)

	replies := f.say(t, "weekly-dice-arena", "/submit http://team/1")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "recorded")
	assert.Equal(t, []int{99}, f.out.deleted)
	assert.Equal(t, [][]string{{"alice", "http://team/1"}}, f.store.Rows("wda", "2024-March-19"))
	dms := f.out.to(aliceID)
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0], "http://team/1")

	replies = f.say(t, "weekly-dice-arena", "/submit http://team/2")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "updated")
	assert.Equal(t, [][]string{{"alice", "http://team/2"}}, f.store.Rows("wda", "2024-March-19"))
}

func TestSubmitFillsCommunityHandle(t *testing.T) {
	f := newFixture(t)
	f.store.Seed("master", "Users",
		[]string{"Chat Name", "Challonge", "Community"},
		[]string{"alice", "al_99", "alice#1"},
	)

	f.say(t, "dice-fight", "/submit http://team/1")

	want := []string{util.SubmissionTime(now), "alice", "http://team/1", "alice#1"}
	assert.Equal(t, [][]string{want}, f.store.Rows("df", "2024-March-21"))
	assert.Len(t, f.out.to(aliceID), 1)
}

func TestSubmitHintsWhenCommunityHandleMissing(t *testing.T) {
	f := newFixture(t)

	f.say(t, "dice-fight", "/submit http://team/1")

	dms := f.out.to(aliceID)
	require.Len(t, dms, 2)
	assert.Contains(t, dms[1], "/win")
}

func TestSubmitSkipsHintWhenMasterSheetUnreadable(t *testing.T) {
	f := newFixture(t)
	f.store.ReadErr = func(sheetID, tab string) error {
		if sheetID == "master" {
			return io.ErrUnexpectedEOF
		}
		return nil
	}

	replies := f.say(t, "dice-fight", "/submit http://team/1")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "recorded")
	dms := f.out.to(aliceID)
	require.Len(t, dms, 1)
	assert.NotContains(t, dms[0], "/win")
	assert.Equal(t, [][]string{{util.SubmissionTime(now), "alice", "http://team/1", ""}}, f.store.Rows("df", "2024-March-21"))
}

func TestSubmitOnUnknownChannel(t *testing.T) {
	f := newFixture(t)

	replies := f.say(t, "general", "/submit http://team/1")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "can't accept")
	assert.Empty(t, f.out.deleted)
	assert.Empty(t, f.store.Trace())
}

func TestSubmitReportsStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.ReadErr = func(sheetID, tab string) error { return io.ErrUnexpectedEOF }

	replies := f.say(t, "weekly-dice-arena", "/submit http://team/1")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "couldn't record")
	assert.Empty(t, f.out.to(aliceID))
}

func TestHere(t *testing.T) {
	f := newFixture(t)
	f.store.Seed("master", "Users",
		[]string{"Chat Name", "Challonge", "Community"},
		[]string{"alice", "al_99", ""},
	)
	f.provider.Register("spring_open", "al_99")

	replies := f.say(t, "spring-open", "/here")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Success")

	replies = f.say(t, "weekly-dice-arena", "/here")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "not supported")
}

func TestAttendanceStatus(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		seed      [][]string
		wantRows  [][]string
		wantReply string
	}{
		{
			name:      "here marks the row",
			command:   "/here",
			seed:      [][]string{{"alice", "http://a", ""}, {"bob", "http://b", ""}},
			wantRows:  [][]string{{"alice", "http://a", "HERE"}, {"bob", "http://b", ""}},
			wantReply: "alice is marked HERE for Team of the Month.",
		},
		{
			name:      "drop keeps the link",
			command:   "/drop",
			seed:      [][]string{{"bob", "http://b"}, {"alice", "http://a", "HERE"}},
			wantRows:  [][]string{{"bob", "http://b"}, {"alice", "http://a", "DROPPED"}},
			wantReply: "alice is marked DROPPED for Team of the Month.",
		},
		{
			name:      "short row is padded",
			command:   ".here",
			seed:      [][]string{{"alice", "http://a"}},
			wantRows:  [][]string{{"alice", "http://a", "HERE"}},
			wantReply: "alice is marked HERE for Team of the Month.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Seed("totm", "2024-March", tt.seed...)

			replies := f.say(t, "team-of-the-month", tt.command)

			assert.Equal(t, []string{tt.wantReply}, replies)
			assert.Equal(t, tt.wantRows, f.store.Rows("totm", "2024-March"))
		})
	}
}

func TestAttendanceNeedsSubmittedTeam(t *testing.T) {
	for _, command := range []string{"/here", "/drop"} {
		t.Run(command, func(t *testing.T) {
			f := newFixture(t)
			f.store.Seed("totm", "2024-March", []string{"bob", "http://b", ""})

			replies := f.say(t, "team-of-the-month", command)

			require.Len(t, replies, 1)
			assert.Contains(t, replies[0], "Submit one first")
			assert.Equal(t, []string{"ReadRange"}, f.store.Trace())
			assert.Equal(t, [][]string{{"bob", "http://b", ""}}, f.store.Rows("totm", "2024-March"))
		})
	}
}

func TestResubmitKeepsAttendance(t *testing.T) {
	f := newFixture(t)
	f.store.Seed("totm", "2024-March", []string{"alice", "http://a", "HERE"})

	f.say(t, "team-of-the-month", "/submit http://a2")

	assert.Equal(t, [][]string{{"alice", "http://a2", "HERE"}}, f.store.Rows("totm", "2024-March"))
}

func TestLinkCommandsKeepTheOtherHandle(t *testing.T) {
	f := newFixture(t)

	replies := f.say(t, "weekly-dice-arena", "/challonge al_99")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "al_99")

	f.say(t, "weekly-dice-arena", "/win alice#1")

	assert.Equal(t, [][]string{
		{"Chat Name", "Challonge", "Community"},
		{"alice", "al_99", "alice#1"},
	}, f.store.Rows("master", "Users"))

	replies = f.say(t, "weekly-dice-arena", "/win")
	assert.Equal(t, []string{"Usage: /win <handle>"}, replies)
}

func TestListAndCount(t *testing.T) {
	f := newFixture(t)
	f.store.Seed("wda", "2024-March-19",
		[]string{"alice", "http://a"},
		[]string{"", ""},
		[]string{"bob", "http://b"},
	)

	replies := f.say(t, "weekly-dice-arena", "/list")
	require.Len(t, replies, 1)
	assert.True(t, strings.HasSuffix(replies[0], "alice\nbob"), replies[0])

	replies = f.say(t, "weekly-dice-arena", "/count")
	assert.Equal(t, []string{"2 submitted for Weekly Dice Arena (2024-March-19)."}, replies)
}

func TestExportLinkIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	replies := f.say(t, "weekly-dice-arena", "/teams")
	assert.Equal(t, []string{"Only organizers can export rosters."}, replies)

	in := Inbound{ChatID: groupChat, ChatTitle: "weekly-dice-arena", Text: "/teams", From: Sender{UserID: adminID, DisplayName: "org"}}
	require.NoError(t, f.router.Handle(context.Background(), in, f.out))
	last := f.out.sent[len(f.out.sent)-1].text
	assert.Contains(t, last, "http://localhost:8080/export/roster.xlsx?channel=weekly-dice-arena&token="+util.ExportToken("s3cret", "weekly-dice-arena"))
}

func TestExportLinkNeedsSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(RouterConfig{AdminIDs: map[int64]bool{adminID: true}}, events, nil, nil, nil, clock.NewFixed(now), logger, nil)
	out := &FakeMessenger{}
	in := Inbound{ChatID: groupChat, ChatTitle: "weekly-dice-arena", Text: "/teams", From: Sender{UserID: adminID, DisplayName: "org"}}

	require.NoError(t, r.Handle(context.Background(), in, out))

	assert.Equal(t, []string{ConfigErrorMessage}, out.to(groupChat))
}

func TestMissingCollaboratorsReplyWithConfigError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(RouterConfig{BotName: "RosterBot"}, events, nil, nil, nil, clock.NewFixed(now), logger, nil)
	out := &FakeMessenger{}

	for _, text := range []string{"/here", "/challonge al_99", "/list"} {
		chat := "weekly-dice-arena"
		if text == "/here" {
			chat = "spring-open"
		}
		in := Inbound{ChatID: groupChat, ChatTitle: chat, Text: text, From: Sender{UserID: aliceID, DisplayName: "alice"}}
		require.NoError(t, r.Handle(context.Background(), in, out))
	}

	require.Len(t, out.sent, 3)
	for _, s := range out.sent {
		assert.Equal(t, ConfigErrorMessage, s.text)
	}
}

func TestPrivateChatNamesTheEvent(t *testing.T) {
	f := newFixture(t)
	in := Inbound{ChatID: aliceID, Private: true, Text: "/submit dice-fight http://team/9", From: Sender{UserID: aliceID, DisplayName: "alice"}}

	require.NoError(t, f.router.Handle(context.Background(), in, f.out))

	assert.Empty(t, f.out.deleted)
	rows := f.store.Rows("df", "2024-March-21")
	require.Len(t, rows, 1)
	assert.Equal(t, "http://team/9", rows[0][2])
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	assert.Empty(t, f.say(t, "weekly-dice-arena", "/dance"))

	in := Inbound{ChatID: aliceID, Private: true, Text: "/dance", From: Sender{UserID: aliceID, DisplayName: "alice"}}
	require.NoError(t, f.router.Handle(context.Background(), in, f.out))
	assert.Contains(t, f.out.to(aliceID)[0], "/help")
}

func TestRosterForExport(t *testing.T) {
	f := newFixture(t)
	f.store.Seed("open", "Signups", []string{"alice", "http://a"})

	m, tab, rows, err := f.router.Roster(context.Background(), "spring-open")

	require.NoError(t, err)
	assert.Equal(t, "Spring Open", m.Name)
	assert.Equal(t, "Signups", tab)
	assert.Len(t, rows, 1)

	_, _, _, err = f.router.Roster(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
