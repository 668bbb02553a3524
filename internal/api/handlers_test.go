package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/adapters/sqlstore"
	"marketlens/app"
	"marketlens/domain/dataframe"
	"marketlens/internal"
	"marketlens/internal/facet"
	"marketlens/internal/session"
	"marketlens/internal/testkit"
	"marketlens/ports"
)

type fixture struct {
	router *gin.Engine
	hub    *SelectionHub
	store  *sqlstore.Store
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	logger := internal.NewDiscardLogger()

	deps := []facet.Dependency{
		facet.Derived("region", "country"),
		facet.Lookup("disease", "brand", facet.LookupTable(testkit.BrandDiseases())),
	}
	s, err := session.New(testkit.PricingFrame(), deps, session.WithLogger(logger))
	require.NoError(t, err)

	var (
		store   *sqlstore.Store
		exports ports.ExportRepository
	)
	if withStore {
		store, err = sqlstore.Open(context.Background(), "sqlite", ":memory:", logger)
		require.NoError(t, err)
		require.NoError(t, store.Migrate(context.Background()))
		t.Cleanup(func() { store.Close() })
		exports = store
	}

	sinks, err := app.Sinks(t.TempDir(), store, logger)
	require.NoError(t, err)
	svc := app.NewDashboardService(s, sinks, 0, logger)

	hub := NewSelectionHub(time.Second, logger)
	h := NewHandler(svc, exports, hub, logger)
	return &fixture{router: NewRouter(h, gin.TestMode), hub: hub, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(11), body["rows"])
}

func TestSelectionLifecycle(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodPut, "/api/selection/country", `{"values":["Japan"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["version"])

	w, body = f.do(t, http.MethodPut, "/api/selection/region", `{"values":["EU"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"region": []interface{}{"EU"}}, body["selection"])
	pruned := body["pruned"].([]interface{})
	require.Len(t, pruned, 1)
	assert.Equal(t, "country", pruned[0].(map[string]interface{})["facet"])

	w, body = f.do(t, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"region": []interface{}{"EU"}}, body["selection"])
	assert.NotEmpty(t, body["hash"])

	w, body = f.do(t, http.MethodDelete, "/api/selection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{}, body["selection"])
}

func TestSetSelectionErrors(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodPut, "/api/selection/planet", `{"values":["Mars"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_FIELD", body["code"])

	w, body = f.do(t, http.MethodPut, "/api/selection/region", `{"values":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestRowsAndOptions(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPut, "/api/selection/region", `{"values":["APAC"]}`)

	w, body := f.do(t, http.MethodGet, "/api/rows?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["total"])
	assert.Len(t, body["rows"], 2)

	w, body = f.do(t, http.MethodGet, "/api/options/country", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"India", "Japan"}, body["options"])

	f.do(t, http.MethodPut, "/api/selection/disease", `{"values":["Oncology"]}`)
	w, body = f.do(t, http.MethodGet, "/api/options/brand", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Oncovia"}, body["options"])

	w, _ = f.do(t, http.MethodGet, "/api/rows?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupedOptions(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/options/country/grouped", "")
	require.Equal(t, http.StatusOK, w.Code)
	groups := body["groups"].([]interface{})
	require.Len(t, groups, 3)
	first := groups[0].(map[string]interface{})
	assert.Equal(t, "APAC", first["group"])
	assert.Equal(t, []interface{}{"India", "Japan"}, first["items"])

	w, _ = f.do(t, http.MethodGet, "/api/options/region/grouped", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregateRoutes(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/aggregate/sum?group=region&metric=revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"APAC": 9605.0, "EU": 24920.0, "LATAM": 800.0}, body["data"])

	w, body = f.do(t, http.MethodGet, "/api/aggregate/average?group=brand&metric=revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10200.0, body["data"].(map[string]interface{})["Oncovia"])

	w, body = f.do(t, http.MethodGet, "/api/aggregate/top?group=country&metric=revenue&n=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	top := body["data"].([]interface{})
	require.Len(t, top, 2)
	assert.Equal(t, "Germany", top[0].(map[string]interface{})["key"])

	w, body = f.do(t, http.MethodGet, "/api/aggregate/pivot?row=dosageForm&col=route&metric=revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	pivot := body["data"].(map[string]interface{})
	assert.Equal(t, "dosageForm", pivot["rowFacet"])

	w, body = f.do(t, http.MethodGet, "/api/aggregate/weighted?group=region&metric=price&weight=field&field=units", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["data"], "LATAM")

	w, body = f.do(t, http.MethodGet, "/api/aggregate/cagr?group=brand&metric=revenue&from=2021&to=2022", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["data"], "Oncovia")
}

func TestPercentageIgnoresNonFiniteCells(t *testing.T) {
	logger := internal.NewDiscardLogger()
	df, bad := dataframe.Build(dataframe.PricingSchema, []map[string]string{
		{"region": "APAC", "revenue": "NaN"},
		{"region": "EU", "revenue": "5"},
		{"region": "LATAM", "revenue": "Inf"},
	})
	require.Len(t, bad, 2)

	s, err := session.New(df, nil, session.WithLogger(logger))
	require.NoError(t, err)
	sinks, err := app.Sinks(t.TempDir(), nil, logger)
	require.NoError(t, err)
	svc := app.NewDashboardService(s, sinks, 0, logger)
	f := &fixture{router: NewRouter(NewHandler(svc, nil, NewSelectionHub(time.Second, logger), logger), gin.TestMode)}

	w, body := f.do(t, http.MethodGet, "/api/aggregate/percentage?group=region&metric=revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"APAC": 0.0, "EU": 100.0, "LATAM": 0.0}, body["data"])
}

func TestAggregateBadRequests(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		path string
	}{
		{"unknown op", "/api/aggregate/median?group=region&metric=revenue"},
		{"bad n", "/api/aggregate/top?group=region&metric=revenue&n=abc"},
		{"bad direction", "/api/aggregate/top?group=region&metric=revenue&dir=sideways"},
		{"missing group", "/api/aggregate/sum?metric=revenue"},
		{"pivot without col", "/api/aggregate/pivot?row=region&metric=revenue"},
		{"cagr without years", "/api/aggregate/cagr?group=brand&metric=revenue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_INPUT", body["code"])
		})
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/summary?metric=revenue", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(10), summary["count"])

	w, _ = f.do(t, http.MethodGet, "/api/summary", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfile(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	columns := body["columns"].([]interface{})
	require.NotEmpty(t, columns)
	assert.Equal(t, "year", columns[0].(map[string]interface{})["name"])
}

func TestExportToFileAndDatabase(t *testing.T) {
	f := newFixture(t, true)

	w, body := f.do(t, http.MethodPost, "/api/export?op=sum&group=region&metric=revenue&format=csv", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.FileExists(t, body["location"].(string))

	w, body = f.do(t, http.MethodPost, "/api/export?op=count&group=region&format=db", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["location"].(string)

	w, body = f.do(t, http.MethodGet, "/api/exports/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "count", body["op"])
	assert.Len(t, body["rows"], 3)

	w, body = f.do(t, http.MethodGet, "/api/exports?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["exports"], 1)

	w, _ = f.do(t, http.MethodGet, "/api/exports/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/export?op=sum&group=region&metric=revenue&format=pdf", "")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", body["code"])
}

func TestExportHistoryWithoutDatabase(t *testing.T) {
	f := newFixture(t, false)

	w, body := f.do(t, http.MethodGet, "/api/exports", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestSelectionChangesReachSubscribers(t *testing.T) {
	f := newFixture(t, false)
	ch := f.hub.Subscribe()
	defer f.hub.Unsubscribe(ch)
	assert.Equal(t, 1, f.hub.ClientCount())

	f.do(t, http.MethodPut, "/api/selection/region", `{"values":["EU"]}`)

	select {
	case event := <-ch:
		assert.Equal(t, uint64(1), event.Change.Version)
		assert.True(t, event.Change.Selection.IsActive("region"))
	case <-time.After(time.Second):
		t.Fatal("no selection event received")
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewSelectionHub(0, internal.NewDiscardLogger())
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-ch
	assert.False(t, open)
}
