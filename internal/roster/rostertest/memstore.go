// Package rostertest provides an in-memory roster.Store for tests.
package rostertest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

var a1Row = regexp.MustCompile(`^[A-Z]+(\d+)$`)

// MemStore keeps tabs as row slices keyed by "sheet/tab". Hooks may be set to
// inject failures; a nil hook means the call succeeds.
type MemStore struct {
	mu    sync.Mutex
	tabs  map[string][][]string
	trace []string

	ReadErr    func(sheetID, tab string) error
	AppendErr  func(sheetID, tab string) error
	UpdateErr  func(sheetID, tab string) error
	RefreshErr func(sheetID string) error
}

func NewMemStore() *MemStore {
	return &MemStore{tabs: map[string][][]string{}}
}

func key(sheetID, tab string) string { return sheetID + "/" + tab }

// Seed replaces the rows of a tab.
func (m *MemStore) Seed(sheetID, tab string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	m.tabs[key(sheetID, tab)] = cp
}

// Rows returns a copy of a tab's rows.
func (m *MemStore) Rows(sheetID, tab string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.tabs[key(sheetID, tab)]
	out := make([][]string, len(src))
	for i, r := range src {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Trace lists the calls made so far, e.g. "ReadRange", "AppendRow".
func (m *MemStore) Trace() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.trace...)
}

func (m *MemStore) record(step string) {
	m.trace = append(m.trace, step)
}

func (m *MemStore) ReadRange(ctx context.Context, sheetID, tab, columns string) ([][]string, error) {
	m.mu.Lock()
	m.record("ReadRange")
	m.mu.Unlock()
	if m.ReadErr != nil {
		if err := m.ReadErr(sheetID, tab); err != nil {
			return nil, err
		}
	}
	return m.Rows(sheetID, tab), nil
}

func (m *MemStore) AppendRow(ctx context.Context, sheetID, tab, columns string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AppendRow")
	if m.AppendErr != nil {
		if err := m.AppendErr(sheetID, tab); err != nil {
			return err
		}
	}
	k := key(sheetID, tab)
	m.tabs[k] = append(m.tabs[k], append([]string(nil), row...))
	return nil
}

func (m *MemStore) UpdateRow(ctx context.Context, sheetID, tab, cell string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateRow")
	if m.UpdateErr != nil {
		if err := m.UpdateErr(sheetID, tab); err != nil {
			return err
		}
	}
	match := a1Row.FindStringSubmatch(cell)
	if match == nil {
		return fmt.Errorf("bad cell %q", cell)
	}
	n, _ := strconv.Atoi(match[1])
	k := key(sheetID, tab)
	if n < 1 || n > len(m.tabs[k]) {
		return fmt.Errorf("row %d out of range", n)
	}
	m.tabs[k][n-1] = append([]string(nil), row...)
	return nil
}

func (m *MemStore) RefreshFreshness(ctx context.Context, sheetID string) error {
	m.mu.Lock()
	m.record("RefreshFreshness")
	m.mu.Unlock()
	if m.RefreshErr != nil {
		return m.RefreshErr(sheetID)
	}
	return nil
}
