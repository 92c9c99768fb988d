// Package cadence names the sheet tab that holds the current cycle of a
// recurring event.
//
// Weekly events round forward to the next anchor weekday (a week out when
// today is the anchor). The year in a weekly label is always taken from the
// current date, so a late-December call that resolves into January still
// carries the old year. Existing spreadsheets were created with that rule;
// WithResolvedYear switches to the resolved date's year for new sheets.
package cadence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"roster-bot/internal/models"
)

var ErrNoCadence = errors.New("event kind has no cadence")

type options struct {
	resolvedYear bool
}

type Option func(*options)

// WithResolvedYear labels weekly tabs with the year of the resolved date
// instead of the current year.
func WithResolvedYear() Option {
	return func(o *options) { o.resolvedYear = true }
}

// DefaultAnchor is the weekday a weekly kind falls on when a manifest does not
// name one.
func DefaultAnchor(kind models.EventKind) time.Weekday {
	if kind == models.KindWeeklyB {
		return time.Thursday
	}
	return time.Tuesday
}

// Resolve returns the label of the cycle that now belongs to.
func Resolve(kind models.EventKind, anchor time.Weekday, now time.Time, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case kind.Weekly():
		next := NextAnchor(anchor, now)
		year := now.Year()
		if o.resolvedYear {
			year = next.Year()
		}
		return fmt.Sprintf("%d-%s-%d", year, next.Month(), next.Day()), nil
	case kind == models.KindMonthly:
		return fmt.Sprintf("%d-%s", now.Year(), now.Month()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNoCadence, kind)
	}
}

// NextAnchor returns midnight of the next anchor weekday strictly after now's date.
func NextAnchor(anchor time.Weekday, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	diff := (7 + int(now.Weekday()) - int(anchor)) % 7
	return today.AddDate(0, 0, 7-diff)
}

// TabFor picks the tab a manifest's rows go to at time now. A fixed tab wins
// over the cadence.
func TabFor(m models.EventManifest, now time.Time, opts ...Option) (string, error) {
	if tab := strings.TrimSpace(m.Tab); tab != "" {
		return tab, nil
	}
	return Resolve(m.Kind, m.AnchorWeekday, now, opts...)
}

// ParseWeekday accepts English weekday names and three-letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// CurrentTabs groups the tab each manifest writes to at time now by
// spreadsheet. Manifests without a cadence or fixed tab are skipped.
func CurrentTabs(events []models.EventManifest, now time.Time, opts ...Option) map[string][]string {
	out := map[string][]string{}
	for _, m := range events {
		tab, err := TabFor(m, now, opts...)
		if err != nil {
			continue
		}
		out[m.SpreadsheetID] = append(out[m.SpreadsheetID], tab)
	}
	return out
}
