package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xuri/excelize/v2"

	"roster-bot/internal/models"
	"roster-bot/internal/util"
)

// RosterSource returns the current rows of a channel's event.
type RosterSource interface {
	Roster(ctx context.Context, channel string) (models.EventManifest, string, []models.RosterRecord, error)
}

func New(addr, exportSecret string, gatherer prometheus.Gatherer, rosters RosterSource, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:    addr,
		Handler: Routes(exportSecret, gatherer, rosters, logger),
	}
}

func Routes(exportSecret string, gatherer prometheus.Gatherer, rosters RosterSource, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if exportSecret == "" {
		logger.Warn("EXPORT_SECRET is empty, roster export disabled")
		return r
	}

	// Roster export (admin-only link with token = HMAC of the channel)
	r.Get("/export/roster.xlsx", func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		token := r.URL.Query().Get("token")
		if channel == "" || token == "" {
			http.Error(w, "channel and token required", http.StatusBadRequest)
			return
		}
		if !util.ValidExportToken(exportSecret, channel, token) {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		m, tab, rows, err := rosters.Roster(r.Context(), channel)
		switch {
		case errors.Is(err, models.ErrNotFound):
			http.Error(w, "unknown channel", http.StatusNotFound)
			return
		case err != nil:
			logger.Error("export roster",
				slog.String("channel", channel),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("error", err),
			)
			http.Error(w, "roster unavailable", http.StatusBadGateway)
			return
		}

		f, err := buildWorkbook(tab, m.Layout, rows)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+channel+`_`+tab+`.xlsx"`)
		if err := f.Write(w); err != nil {
			logger.Error("write workbook", slog.String("channel", channel), slog.Any("error", err))
		}
	})

	return r
}

// buildWorkbook lays the rows out under a header of field names.
func buildWorkbook(tab string, layout models.Layout, rows []models.RosterRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	name := sheetName(tab)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(layout.Fields))
	for i, field := range layout.Fields {
		header[i] = field
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// sheetName strips characters workbook tab names cannot hold and truncates to
// the 31 rune limit.
func sheetName(tab string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, tab)
	clean = strings.Trim(clean, "'")
	if clean == "" {
		return "Roster"
	}
	if rs := []rune(clean); len(rs) > 31 {
		clean = string(rs[:31])
	}
	return clean
}
