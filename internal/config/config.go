package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotName       string
	TelegramToken string

	GoogleServiceAccountJSON string
	MasterSheetID            string
	MasterTab                string
	MasterColumns            string
	MasterHeaderRows         int

	TournamentProvider string
	ChallongeAPIKey    string
	ChallongeRPS       float64

	EventsFile        string
	FreshnessInterval time.Duration
	Timezone          string

	// ResolvedYearLabels names weekly tabs by the resolved date's year.
	ResolvedYearLabels bool

	AdminTGIDs map[int64]bool

	HTTPAddr      string
	BasePublicURL string
	// ExportSecret signs roster export links. Exports are off when empty.
	ExportSecret  string

	LogLevel  string
	LogFormat string
}

func FromEnv() (Config, error) {
	var c Config
	c.BotName = envOr("BOT_NAME", "Roster Bot")
	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	c.MasterSheetID = strings.TrimSpace(os.Getenv("MASTER_SHEET_ID"))
	c.MasterTab = envOr("MASTER_TAB", "Users")
	c.MasterColumns = envOr("MASTER_COLUMNS", "A:C")
	c.MasterHeaderRows = 1
	if v := strings.TrimSpace(os.Getenv("MASTER_HEADER_ROWS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("MASTER_HEADER_ROWS: %w", err)
		}
		c.MasterHeaderRows = n
	}

	c.ChallongeAPIKey = strings.TrimSpace(os.Getenv("CHALLONGE_API_KEY"))
	c.TournamentProvider = strings.TrimSpace(os.Getenv("TOURNAMENT_PROVIDER"))
	if c.TournamentProvider == "" {
		c.TournamentProvider = "stub"
		if c.ChallongeAPIKey != "" {
			c.TournamentProvider = "challonge"
		}
	}
	c.ChallongeRPS = 1
	if v := strings.TrimSpace(os.Getenv("CHALLONGE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("CHALLONGE_RPS: %w", err)
		}
		c.ChallongeRPS = f
	}

	c.EventsFile = envOr("EVENTS_FILE", "events.yaml")
	c.FreshnessInterval = 15 * time.Second
	if v := strings.TrimSpace(os.Getenv("FRESHNESS_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("FRESHNESS_INTERVAL: %w", err)
		}
		c.FreshnessInterval = d
	}
	c.Timezone = strings.TrimSpace(os.Getenv("TIMEZONE"))
	if v := strings.TrimSpace(os.Getenv("CADENCE_RESOLVED_YEAR")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("CADENCE_RESOLVED_YEAR: %w", err)
		}
		c.ResolvedYearLabels = b
	}

	c.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")
	c.ExportSecret = strings.TrimSpace(os.Getenv("EXPORT_SECRET"))

	c.LogLevel = envOr("LOG_LEVEL", "info")
	c.LogFormat = envOr("LOG_FORMAT", "json")

	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	return c, c.Validate()
}

// Validate reports the first missing or malformed setting by its env name.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
	}
	if c.MasterSheetID == "" {
		return fmt.Errorf("MASTER_SHEET_ID is empty")
	}
	if c.MasterHeaderRows < 0 {
		return fmt.Errorf("MASTER_HEADER_ROWS must not be negative")
	}
	switch c.TournamentProvider {
	case "challonge", "stub":
	default:
		return fmt.Errorf("TOURNAMENT_PROVIDER %q is not one of challonge, stub", c.TournamentProvider)
	}
	if c.FreshnessInterval <= 0 {
		return fmt.Errorf("FRESHNESS_INTERVAL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.LogFormat)
	}
	return nil
}

// Location is the zone cadence labels are computed in; local time when
// TIMEZONE is unset.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
