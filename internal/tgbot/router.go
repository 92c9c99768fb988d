package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"roster-bot/internal/cadence"
	"roster-bot/internal/checkin"
	"roster-bot/internal/clock"
	"roster-bot/internal/identity"
	"roster-bot/internal/metrics"
	"roster-bot/internal/models"
	"roster-bot/internal/roster"
	"roster-bot/internal/util"
)

// ConfigErrorMessage is the reply for commands whose collaborator could not
// be built at startup.
const ConfigErrorMessage = "This command is unavailable because the bot is misconfigured. Please contact an organizer."

// RouterConfig holds the static settings of a Router.
type RouterConfig struct {
	BotName       string
	AdminIDs      map[int64]bool
	BasePublicURL string
	HTTPAddr      string
	ExportSecret  string
	CadenceOpts   []cadence.Option
}

// Router turns chat commands into roster, identity, and check-in calls.
// Engine, Mapper, and CheckIn may be nil; commands that need a missing one
// reply with ConfigErrorMessage.
type Router struct {
	cfg     RouterConfig
	events  []models.EventManifest
	engine  *roster.Engine
	mapper  *identity.Mapper
	checkIn *checkin.Coordinator
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRouter(
	cfg RouterConfig,
	events []models.EventManifest,
	engine *roster.Engine,
	mapper *identity.Mapper,
	checkIn *checkin.Coordinator,
	clk clock.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	return &Router{
		cfg:     cfg,
		events:  events,
		engine:  engine,
		mapper:  mapper,
		checkIn: checkIn,
		clock:   clk,
		logger:  logger,
		metrics: m,
	}
}

// Handle processes one inbound message. Errors are delivery errors only;
// every domain failure is answered in chat.
func (r *Router) Handle(ctx context.Context, in Inbound, out Messenger) error {
	name, args, ok := parseCommand(in.Text)
	if !ok {
		return nil
	}
	log := r.logger.With(
		slog.String("command_id", uuid.NewString()),
		slog.String("command", name),
		slog.String("chat", in.ChatTitle),
		slog.String("user", in.From.DisplayName),
	)

	var reply string
	switch name {
	case "ping":
		reply = "Pong!"
	case "help", "start":
		reply = r.help()
	case "submit":
		reply = r.submit(ctx, log, in, args, out)
	case "here":
		reply = r.here(ctx, log, in, args)
	case "drop":
		reply = r.drop(ctx, log, in, args)
	case "challonge":
		reply = r.linkHandle(ctx, log, in, args, models.FieldTournamentHandle)
	case "win":
		reply = r.linkHandle(ctx, log, in, args, models.FieldCommunityHandle)
	case "list":
		reply = r.list(ctx, log, in, args)
	case "count":
		reply = r.count(ctx, log, in, args)
	case "teams", "export":
		reply = r.exportLink(in, args)
	default:
		if in.Private {
			reply = "Sorry, I don't know that command. Try /help."
		}
		name = "unknown"
	}
	r.metrics.Command(name)
	log.Debug("command handled")

	if reply == "" {
		return nil
	}
	return out.SendText(in.ChatID, reply)
}

func (r *Router) help() string {
	return fmt.Sprintf(`%s commands:
/submit <team link> - submit your team for this channel's event
/here - check in for this channel's event (only at the time of the event)
/drop - mark yourself as dropped from this channel's event
/challonge <username> - link your Challonge username
/win <handle> - link your community handle
/list - who has submitted for the current event
/count - how many have submitted
/ping - check that I'm alive`, r.cfg.BotName)
}

// manifest selects the event configured for the chat. In private chats the
// event may be named explicitly as the first argument.
func (r *Router) manifest(in Inbound, args []string) (models.EventManifest, []string, bool) {
	if in.Private && len(args) > 0 {
		for _, m := range r.events {
			if strings.EqualFold(m.Channel, args[0]) || strings.EqualFold(m.Name, args[0]) {
				return m, args[1:], true
			}
		}
		return models.EventManifest{}, args, false
	}
	for _, m := range r.events {
		if strings.EqualFold(m.Channel, in.ChatTitle) {
			return m, args, true
		}
	}
	return models.EventManifest{}, args, false
}

func (r *Router) target(m models.EventManifest) (roster.Target, error) {
	tab, err := cadence.TabFor(m, r.clock.Now(), r.cfg.CadenceOpts...)
	if err != nil {
		return roster.Target{}, err
	}
	return roster.Target{SheetID: m.SpreadsheetID, Tab: tab, Layout: m.Layout}, nil
}

func identityOf(in Inbound) models.ChatIdentity {
	return models.ChatIdentity{DisplayName: in.From.DisplayName, UserID: in.From.UserID}
}

func (r *Router) submit(ctx context.Context, log *slog.Logger, in Inbound, args []string, out Messenger) string {
	m, args, ok := r.manifest(in, args)
	if !ok {
		if in.Private {
			return "Tell me which event: /submit <event> <team link>"
		}
		return "I can't accept team links on this channel."
	}
	if !in.Private {
		// The link stays private until the event starts.
		if err := out.DeleteMessage(in.ChatID, in.MessageID); err != nil {
			log.Warn("delete submission message", slog.Any("error", err))
		}
	}
	if len(args) == 0 {
		return fmt.Sprintf("%s, please include your team link: /submit <team link>", in.From.DisplayName)
	}
	if r.engine == nil {
		return ConfigErrorMessage
	}
	link := strings.Join(args, " ")

	t, err := r.target(m)
	if err != nil {
		log.Error("resolve tab", slog.String("event", m.Name), slog.Any("error", err))
		return ConfigErrorMessage
	}

	values := map[string]string{
		models.FieldTimestamp: util.SubmissionTime(r.clock.Now()),
		models.FieldChatName:  in.From.DisplayName,
		models.FieldTeamLink:  link,
	}
	wantsCommunity := m.Layout.FieldIndex(models.FieldCommunityHandle) >= 0
	wantsTournament := m.Layout.FieldIndex(models.FieldTournamentHandle) >= 0
	// handleKnown is false only when the master sheet answered and has no
	// community handle for the sender.
	handleKnown := true
	if (wantsCommunity || wantsTournament) && r.mapper != nil {
		userLink, err := r.mapper.Lookup(ctx, identityOf(in))
		switch {
		case err == nil, errors.Is(err, models.ErrNotFound):
			handleKnown = userLink.CommunityHandle != ""
		default:
			log.Warn("lookup handles for submission", slog.Any("error", err))
		}
		values[models.FieldCommunityHandle] = userLink.CommunityHandle
		values[models.FieldTournamentHandle] = userLink.TournamentHandle
	}

	if statusCol := m.Layout.FieldIndex(models.FieldStatus); statusCol >= 0 {
		// A new link does not undo HERE or DROPPED.
		prev, err := r.engine.Find(ctx, t, in.From.DisplayName)
		if err == nil {
			values[models.FieldStatus] = prev.Cell(statusCol)
		}
	}

	res := r.engine.Upsert(ctx, t, m.Layout.Build(values))
	r.metrics.Upsert(res.Outcome.String())
	if res.Outcome == roster.Failed {
		return fmt.Sprintf("Sorry %s, I couldn't record your team for %s. Please try again in a minute.", in.From.DisplayName, m.Name)
	}

	r.dm(log, out, in.From.UserID, fmt.Sprintf("The following team was successfully submitted for %s (%s):\n%s", m.Name, t.Tab, link))
	if wantsCommunity && !handleKnown {
		r.dm(log, out, in.From.UserID, fmt.Sprintf("I don't know your community handle yet. Link it with /win <handle> so %s can credit you.", m.Name))
	}

	verb := "recorded"
	if res.Outcome == roster.Updated {
		verb = "updated"
	}
	return fmt.Sprintf("Thanks %s, your team for %s was %s.", in.From.DisplayName, m.Name, verb)
}

func (r *Router) dm(log *slog.Logger, out Messenger, userID int64, text string) {
	if userID == 0 {
		return
	}
	if err := out.SendText(userID, text); err != nil {
		log.Warn("direct message", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// here checks the sender in with the tournament service on bracket events
// and marks them HERE in the sheet everywhere else.
func (r *Router) here(ctx context.Context, log *slog.Logger, in Inbound, args []string) string {
	m, _, ok := r.manifest(in, args)
	if !ok {
		return "Check-in is not supported on this channel."
	}
	if m.Bracket() {
		if r.checkIn == nil {
			return ConfigErrorMessage
		}
		return r.checkIn.CheckIn(ctx, identityOf(in), m.TournamentID).Message
	}
	return r.markStatus(ctx, log, in, m, models.StatusHere)
}

func (r *Router) drop(ctx context.Context, log *slog.Logger, in Inbound, args []string) string {
	m, _, ok := r.manifest(in, args)
	if !ok {
		return "There is no event on this channel."
	}
	return r.markStatus(ctx, log, in, m, models.StatusDropped)
}

// markStatus rewrites the sender's row with a new status cell. The row must
// already exist; every other cell is written back unchanged.
func (r *Router) markStatus(ctx context.Context, log *slog.Logger, in Inbound, m models.EventManifest, status string) string {
	statusCol := m.Layout.FieldIndex(models.FieldStatus)
	if statusCol < 0 {
		return "Check-in is not supported on this channel."
	}
	if r.engine == nil {
		return ConfigErrorMessage
	}
	t, err := r.target(m)
	if err != nil {
		log.Error("resolve tab", slog.String("event", m.Name), slog.Any("error", err))
		return ConfigErrorMessage
	}

	row, err := r.engine.Find(ctx, t, in.From.DisplayName)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fmt.Sprintf("%s, you haven't submitted a team for %s yet. Submit one first with /submit <team link>.", in.From.DisplayName, m.Name)
	case err != nil:
		log.Error("read roster row", slog.Any("error", err))
		return fmt.Sprintf("Sorry %s, I couldn't update %s right now. Please try again.", in.From.DisplayName, m.Name)
	}
	row[statusCol] = status

	res := r.engine.Upsert(ctx, t, row)
	r.metrics.Upsert(res.Outcome.String())
	if res.Outcome == roster.Failed {
		return fmt.Sprintf("Sorry %s, I couldn't update %s right now. Please try again.", in.From.DisplayName, m.Name)
	}
	return fmt.Sprintf("%s is marked %s for %s.", in.From.DisplayName, status, m.Name)
}

// linkHandle stores one handle in the master sheet, keeping the other one.
func (r *Router) linkHandle(ctx context.Context, log *slog.Logger, in Inbound, args []string, field string) string {
	label := "Challonge username"
	usage := "/challonge <username>"
	if field == models.FieldCommunityHandle {
		label = "community handle"
		usage = "/win <handle>"
	}
	if len(args) == 0 {
		return "Usage: " + usage
	}
	if r.mapper == nil || r.engine == nil {
		return ConfigErrorMessage
	}
	handle := strings.Join(args, " ")

	link, err := r.mapper.Lookup(ctx, identityOf(in))
	switch {
	case errors.Is(err, models.ErrNotFound):
		link = models.UserLink{}
	case err != nil:
		log.Error("lookup user link", slog.Any("error", err))
		return fmt.Sprintf("Sorry %s, I couldn't save your %s right now. Please try again.", in.From.DisplayName, label)
	}
	link.ChatName = in.From.DisplayName
	if field == models.FieldTournamentHandle {
		link.TournamentHandle = handle
	} else {
		link.CommunityHandle = handle
	}

	res := r.engine.Upsert(ctx, r.mapper.Master(), r.mapper.Row(link))
	r.metrics.Upsert(res.Outcome.String())
	if res.Outcome == roster.Failed {
		return fmt.Sprintf("Sorry %s, I couldn't save your %s right now. Please try again.", in.From.DisplayName, label)
	}
	return fmt.Sprintf("Thanks %s, your %s is now %s.", in.From.DisplayName, label, handle)
}

func (r *Router) rows(ctx context.Context, log *slog.Logger, in Inbound, args []string) (models.EventManifest, string, []models.RosterRecord, string) {
	m, _, ok := r.manifest(in, args)
	if !ok {
		return m, "", nil, "There is no event on this channel."
	}
	if r.engine == nil {
		return m, "", nil, ConfigErrorMessage
	}
	t, err := r.target(m)
	if err != nil {
		log.Error("resolve tab", slog.String("event", m.Name), slog.Any("error", err))
		return m, "", nil, ConfigErrorMessage
	}
	rows, err := r.engine.List(ctx, t)
	if err != nil {
		log.Error("list roster", slog.Any("error", err))
		return m, t.Tab, nil, "Sorry, I couldn't read the roster right now."
	}
	return m, t.Tab, rows, ""
}

func (r *Router) list(ctx context.Context, log *slog.Logger, in Inbound, args []string) string {
	m, tab, rows, fail := r.rows(ctx, log, in, args)
	if fail != "" {
		return fail
	}
	if len(rows) == 0 {
		return fmt.Sprintf("Nobody has submitted for %s (%s) yet.", m.Name, tab)
	}
	idCol := m.Layout.IdentityColumn()
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Cell(idCol)
	}
	return fmt.Sprintf("Submitted for %s (%s):\n%s", m.Name, tab, strings.Join(names, "\n"))
}

func (r *Router) count(ctx context.Context, log *slog.Logger, in Inbound, args []string) string {
	m, tab, rows, fail := r.rows(ctx, log, in, args)
	if fail != "" {
		return fail
	}
	return fmt.Sprintf("%d submitted for %s (%s).", len(rows), m.Name, tab)
}

func (r *Router) exportLink(in Inbound, args []string) string {
	if !r.cfg.AdminIDs[in.From.UserID] {
		return "Only organizers can export rosters."
	}
	if r.cfg.ExportSecret == "" {
		return ConfigErrorMessage
	}
	m, _, ok := r.manifest(in, args)
	if !ok {
		return "There is no event on this channel."
	}
	base := r.cfg.BasePublicURL
	if base == "" {
		base = "http://localhost" + r.cfg.HTTPAddr
	}
	q := url.Values{}
	q.Set("channel", m.Channel)
	q.Set("token", util.ExportToken(r.cfg.ExportSecret, m.Channel))
	return fmt.Sprintf("Roster export for %s: %s/export/roster.xlsx?%s", m.Name, base, q.Encode())
}

// Roster returns the current rows of a channel's event, for the export endpoint.
func (r *Router) Roster(ctx context.Context, channel string) (models.EventManifest, string, []models.RosterRecord, error) {
	var m models.EventManifest
	found := false
	for _, e := range r.events {
		if e.Channel == channel {
			m, found = e, true
			break
		}
	}
	if !found {
		return m, "", nil, fmt.Errorf("%w: channel %q", models.ErrNotFound, channel)
	}
	if r.engine == nil {
		return m, "", nil, models.ErrNotConfigured
	}
	t, err := r.target(m)
	if err != nil {
		return m, "", nil, err
	}
	rows, err := r.engine.List(ctx, t)
	return m, t.Tab, rows, err
}
