// Package roster keeps one row per chat identity in a sheet tab.
//
// The backing store only offers row positions as keys, so every upsert reads
// the whole tab and scans it. There is no lock around the read-then-write:
// two concurrent upserts for the same identity can both miss and both append.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"roster-bot/internal/models"
)

// Store is the spreadsheet collaborator.
type Store interface {
	ReadRange(ctx context.Context, sheetID, tab, columns string) ([][]string, error)
	AppendRow(ctx context.Context, sheetID, tab, columns string, row []string) error
	UpdateRow(ctx context.Context, sheetID, tab, cell string, row []string) error
	RefreshFreshness(ctx context.Context, sheetID string) error
}

// Target addresses a tab and the layout of its rows.
type Target struct {
	SheetID string
	Tab     string
	Layout  models.Layout
}

func (t Target) String() string {
	return t.SheetID + "/" + t.Tab
}

type Outcome int

const (
	Failed Outcome = iota
	Added
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "failed"
	}
}

type Result struct {
	Outcome Outcome
	Row     int // 1-based sheet row for updates, 0 for appends
	Err     error
}

type Engine struct {
	store  Store
	logger *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Upsert writes row to t, updating the first row with the same identity or
// appending when there is none. It issues exactly one write, and none when
// the read fails.
func (e *Engine) Upsert(ctx context.Context, t Target, row models.RosterRecord) Result {
	idCol := t.Layout.IdentityColumn()
	identity := row.Cell(idCol)
	log := e.logger.With(
		slog.String("target", t.String()),
		slog.String("identity", identity),
	)

	if idCol < 0 || strings.TrimSpace(identity) == "" {
		log.Warn("upsert without identity")
		return Result{Outcome: Failed, Err: fmt.Errorf("row has no identity")}
	}

	values, err := e.store.ReadRange(ctx, t.SheetID, t.Tab, t.Layout.Columns)
	if err != nil {
		log.Error("read tab", slog.Any("error", err))
		return Result{Outcome: Failed, Err: fmt.Errorf("%w: read %s: %w", models.ErrTransport, t, err)}
	}

	rowNum := 0
	for i := t.Layout.HeaderRows; i < len(values); i++ {
		if cell(values[i], idCol) == identity {
			rowNum = i + 1 // sheet rows are 1-indexed
			break
		}
	}

	if rowNum > 0 {
		a1 := fmt.Sprintf("%s%d", t.Layout.FirstColumn(), rowNum)
		if err := e.store.UpdateRow(ctx, t.SheetID, t.Tab, a1, row); err != nil {
			log.Error("update row", slog.Int("row", rowNum), slog.Any("error", err))
			return Result{Outcome: Failed, Err: fmt.Errorf("%w: update %s!%s: %w", models.ErrTransport, t, a1, err)}
		}
		log.Info("row updated", slog.Int("row", rowNum))
		return Result{Outcome: Updated, Row: rowNum}
	}

	if err := e.store.AppendRow(ctx, t.SheetID, t.Tab, t.Layout.Columns, row); err != nil {
		log.Error("append row", slog.Any("error", err))
		return Result{Outcome: Failed, Err: fmt.Errorf("%w: append %s: %w", models.ErrTransport, t, err)}
	}
	log.Info("row added")
	return Result{Outcome: Added}
}

// List returns the data rows of t, skipping header rows and rows without an
// identity.
func (e *Engine) List(ctx context.Context, t Target) ([]models.RosterRecord, error) {
	values, err := e.store.ReadRange(ctx, t.SheetID, t.Tab, t.Layout.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrTransport, t, err)
	}
	idCol := t.Layout.IdentityColumn()
	out := []models.RosterRecord{}
	for i := t.Layout.HeaderRows; i < len(values); i++ {
		if strings.TrimSpace(cell(values[i], idCol)) == "" {
			continue
		}
		out = append(out, models.RosterRecord(values[i]))
	}
	return out, nil
}

// Find returns the first data row of t whose identity is identity. The row is
// padded to the layout's width so every field has a cell.
func (e *Engine) Find(ctx context.Context, t Target, identity string) (models.RosterRecord, error) {
	rows, err := e.List(ctx, t)
	if err != nil {
		return nil, err
	}
	idCol := t.Layout.IdentityColumn()
	for _, row := range rows {
		if row.Cell(idCol) != identity {
			continue
		}
		out := make(models.RosterRecord, max(len(row), len(t.Layout.Fields)))
		copy(out, row)
		return out, nil
	}
	return nil, fmt.Errorf("%w: no row for %q in %s", models.ErrNotFound, identity, t)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
