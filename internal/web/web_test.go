package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/model"
	"calgrid/internal/store"
	"calgrid/internal/web"
)

type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) RunOnce(context.Context) error {
	f.calls++
	return f.err
}

type month struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	WeekStart string `json:"week_start"`
	Filter    string `json:"filter"`
	Skipped   int    `json:"skipped"`
	Weeks     [][]struct {
		Date     string `json:"date"`
		InMonth  bool   `json:"in_month"`
		IsToday  bool   `json:"is_today"`
		Count    int    `json:"count"`
		Overflow int    `json:"overflow"`
		Shown    []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"shown"`
	} `json:"weeks"`
}

func newTestServer(t *testing.T, cfg *config.Config, refresher web.Refresher) (*web.Server, *store.Store) {
	t.Helper()
	st := store.New()

	at := func(d int, h int) time.Time { return time.Date(2024, time.February, d, h, 0, 0, 0, time.UTC) }
	occ := &model.Occurrence{SourceID: "acme-mkt", Summary: "Spring sale", Start: at(15, 9), End: at(15, 10)}
	records := []calendar.Record{
		{ID: "1", Entity: "acme", Effective: at(15, 9), Payload: occ},
		{ID: "2", Entity: "acme", Effective: at(15, 10)},
		{ID: "3", Entity: "globex", Effective: at(15, 11)},
		{ID: "4", Entity: "acme", Effective: at(15, 12)},
		{ID: "5", Entity: "acme", Effective: at(15, 13)},
		{ID: "6", Entity: "globex", Effective: at(20, 8)},
		{ID: "7", Entity: "acme"},
	}
	st.Replace(records, []model.Entity{{ID: "acme", Name: "Acme"}, {ID: "globex", Name: "Globex"}}, at(1, 0))

	opts := calendar.Options{WeekStart: calendar.WeekStartSunday, InlineLimit: 3, Location: time.UTC}
	clock := MockClock{CurrentTime: at(15, 12)}
	return web.NewServer(cfg, opts, st, refresher, clock), st
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMonth(t *testing.T, rec *httptest.ResponseRecorder) month {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m month
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestMonth_February2024(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	m := decodeMonth(t, do(t, srv.Handler(), http.MethodGet, "/api/month?year=2024&month=2"))

	assert.Equal(t, 2024, m.Year)
	assert.Equal(t, "sunday", m.WeekStart)
	assert.Equal(t, 1, m.Skipped)
	require.Len(t, m.Weeks, 5)
	for _, w := range m.Weeks {
		assert.Len(t, w, 7)
	}
	assert.Equal(t, "2024-01-28", m.Weeks[0][0].Date)

	// Feb 15 is the fifth cell of the third row.
	cell := m.Weeks[2][4]
	assert.Equal(t, "2024-02-15", cell.Date)
	assert.True(t, cell.IsToday)
	assert.Equal(t, 5, cell.Count)
	require.Len(t, cell.Shown, 3)
	assert.Equal(t, "1", cell.Shown[0].ID)
	assert.Equal(t, "Spring sale", cell.Shown[0].Summary)
	assert.Equal(t, 2, cell.Overflow)
}

func TestMonth_EntityFilter(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	m := decodeMonth(t, do(t, srv.Handler(), http.MethodGet, "/api/month?year=2024&month=2&entity=globex"))

	assert.Equal(t, "entity:globex", m.Filter)
	assert.Equal(t, 0, m.Skipped)
	assert.Equal(t, 1, m.Weeks[2][4].Count)
	assert.Zero(t, m.Weeks[2][4].Overflow)
}

func TestMonth_Defaults_And_Errors(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	h := srv.Handler()

	m := decodeMonth(t, do(t, h, http.MethodGet, "/api/month"))
	assert.Equal(t, 2, m.Month, "defaults to the clock's month")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/month?year=2024&month=13").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/month?year=abc").Code)
}

func TestDay(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/day?date=2024-02-15&entity=acme")
	require.Equal(t, http.StatusOK, rec.Code)
	var day struct {
		Date    string `json:"date"`
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, "2024-02-15", day.Date)
	require.Len(t, day.Records, 4)
	assert.Equal(t, "5", day.Records[3].ID)

	rec = do(t, h, http.MethodGet, "/api/day?date=2024-02-16")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/day?date=15/02/2024").Code)
}

func TestDay_LeavesViewFilterAlone(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/day?date=2024-02-15&entity=globex")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_today":true`)
	assert.Contains(t, rec.Body.String(), `"filter":"entity:globex"`)

	m := decodeMonth(t, do(t, h, http.MethodGet, "/api/view"))
	assert.Equal(t, "all", m.Filter)
}

func TestView_Navigation(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	h := srv.Handler()

	m := decodeMonth(t, do(t, h, http.MethodGet, "/api/view"))
	assert.Equal(t, 2, m.Month)

	m = decodeMonth(t, do(t, h, http.MethodPost, "/api/view/next"))
	assert.Equal(t, 3, m.Month)
	m = decodeMonth(t, do(t, h, http.MethodPost, "/api/view/prev"))
	m = decodeMonth(t, do(t, h, http.MethodPost, "/api/view/prev"))
	assert.Equal(t, 1, m.Month)
	m = decodeMonth(t, do(t, h, http.MethodPost, "/api/view/today"))
	assert.Equal(t, 2, m.Month)

	m = decodeMonth(t, do(t, h, http.MethodPost, "/api/view/filter?entity=globex"))
	assert.Equal(t, "entity:globex", m.Filter)
	m = decodeMonth(t, do(t, h, http.MethodGet, "/api/view"))
	assert.Equal(t, "entity:globex", m.Filter, "filter sticks to the view")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/view/sideways").Code)
}

func TestEntitiesAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/entities")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entities":[{"id":"acme","name":"Acme"},{"id":"globex","name":"Globex"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/health")
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRefresh(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultConfig(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv.Handler(), http.MethodPost, "/api/refresh").Code)

	r := &fakeRefresher{err: errors.New("globex: 503")}
	srv, _ = newTestServer(t, config.DefaultConfig(), r)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "globex: 503")
	assert.Equal(t, 1, r.calls)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "s3cret"}
	srv, _ := newTestServer(t, cfg, nil)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/entities").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
	req.SetBasicAuth("ops", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
