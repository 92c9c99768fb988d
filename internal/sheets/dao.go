package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sheetsv4 "google.golang.org/api/sheets/v4"
)

// A1 builds a range like 'Tab name'!A:E. Tab names are always quoted since
// cadence labels contain dashes.
func A1(tab, ref string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + ref
}

func (c *Client) ReadRange(ctx context.Context, sheetID, tab, columns string) ([][]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(sheetID, A1(tab, columns)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	return out, nil
}

func (c *Client) AppendRow(ctx context.Context, sheetID, tab, columns string, row []string) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := c.srv.Spreadsheets.Values.Append(sheetID, A1(tab, columns), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) UpdateRow(ctx context.Context, sheetID, tab, cell string, row []string) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := c.srv.Spreadsheets.Values.Update(sheetID, A1(tab, cell), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// RefreshFreshness re-reads the spreadsheet's metadata. It fails when the
// sheet is gone or the service account lost access.
func (c *Client) RefreshFreshness(ctx context.Context, sheetID string) error {
	ss, err := c.srv.Spreadsheets.Get(sheetID).
		Fields("properties.title", "sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", sheetID, err)
	}
	title := ""
	if ss.Properties != nil {
		title = ss.Properties.Title
	}
	c.logger.Debug("spreadsheet fresh",
		slog.String("sheet_id", sheetID),
		slog.String("title", title),
		slog.Int("tabs", len(ss.Sheets)),
	)
	return nil
}

// EnsureTabs refreshes the spreadsheet like RefreshFreshness and adds every
// tab in tabs that does not exist yet.
func (c *Client) EnsureTabs(ctx context.Context, sheetID string, tabs []string) error {
	ss, err := c.srv.Spreadsheets.Get(sheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", sheetID, err)
	}
	have := map[string]bool{}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			have[s.Properties.Title] = true
		}
	}

	var reqs []*sheetsv4.Request
	for _, tab := range tabs {
		if tab == "" || have[tab] {
			continue
		}
		have[tab] = true
		reqs = append(reqs, &sheetsv4.Request{
			AddSheet: &sheetsv4.AddSheetRequest{
				Properties: &sheetsv4.SheetProperties{Title: tab},
			},
		})
	}
	if len(reqs) == 0 {
		return nil
	}

	_, err = c.srv.Spreadsheets.BatchUpdate(sheetID, &sheetsv4.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("add tabs to %s: %w", sheetID, err)
	}
	c.logger.Info("tabs created", slog.String("sheet_id", sheetID), slog.Int("count", len(reqs)))
	return nil
}

// ---------- helpers ----------

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i := range row {
		out[i] = get(row, i)
	}
	return out
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
