package sheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type recorded struct {
	method string
	path   string
	query  map[string][]string
	body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query()}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c, &calls
}

func TestA1(t *testing.T) {
	assert.Equal(t, "'2024-March-19'!A:E", A1("2024-March-19", "A:E"))
	assert.Equal(t, "'Bob''s Cup'!B7", A1("Bob's Cup", "B7"))
}

func TestReadRange(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"range":"x","majorDimension":"ROWS","values":[["alice","link1"],["bob",2],[]]}`))
	})

	rows, err := c.ReadRange(context.Background(), "sheet-1", "2024-March-19", "A:E")

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alice", "link1"}, {"bob", "2"}, {}}, rows)
	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'2024-March-19'!A:E", (*calls)[0].path)
}

func TestAppendAndUpdateRow(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	require.NoError(t, c.AppendRow(ctx, "sheet-1", "Users", "A:C", []string{"alice", "al_99", ""}))
	require.NoError(t, c.UpdateRow(ctx, "sheet-1", "Users", "A4", []string{"bob", "", "bob#1"}))

	require.Len(t, *calls, 2)
	appendCall, updateCall := (*calls)[0], (*calls)[1]

	assert.Equal(t, http.MethodPost, appendCall.method)
	assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Users'!A:C:append", appendCall.path)
	assert.Equal(t, []string{"RAW"}, appendCall.query["valueInputOption"])
	assert.Equal(t, []string{"INSERT_ROWS"}, appendCall.query["insertDataOption"])
	assert.Equal(t, []any{[]any{"alice", "al_99", ""}}, appendCall.body["values"])

	assert.Equal(t, http.MethodPut, updateCall.method)
	assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Users'!A4", updateCall.path)
	assert.Equal(t, []any{[]any{"bob", "", "bob#1"}}, updateCall.body["values"])
}

func TestRefreshFreshness(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v4/spreadsheets/gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
			return
		}
		_, _ = w.Write([]byte(`{"properties":{"title":"Dice Fight"},"sheets":[{"properties":{"title":"2024-March-21"}}]}`))
	})
	ctx := context.Background()

	assert.NoError(t, c.RefreshFreshness(ctx, "df"))
	err := c.RefreshFreshness(ctx, "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
	assert.Len(t, *calls, 2)
}

func TestLoadCredentials(t *testing.T) {
	data, err := loadCredentials(` {"type":"service_account"} `)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(data))

	_, err = loadCredentials("/does/not/exist.json")
	assert.Error(t, err)
}

func TestEnsureTabsAddsOnlyMissing(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"2024-March-19"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"wda"}`))
	})

	err := c.EnsureTabs(context.Background(), "wda", []string{"2024-March-19", "2024-March-26", "2024-March-26"})

	require.NoError(t, err)
	require.Len(t, *calls, 2)
	batch := (*calls)[1]
	assert.Equal(t, http.MethodPost, batch.method)
	assert.Equal(t, "/v4/spreadsheets/wda:batchUpdate", batch.path)
	assert.Equal(t, []any{
		map[string]any{"addSheet": map[string]any{"properties": map[string]any{"title": "2024-March-26"}}},
	}, batch.body["requests"])
}

func TestEnsureTabsWithNothingMissing(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Signups"}}]}`))
	})

	require.NoError(t, c.EnsureTabs(context.Background(), "open", []string{"Signups"}))
	assert.Len(t, *calls, 1)
}
