package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/ics"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

// MockFetcher simulates the network layer using `testify/mock`.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error) {
	args := m.Called(ctx, sources)
	var errs []error
	if e := args.Get(1); e != nil {
		errs = e.([]error)
	}
	return args.Get(0).([]ics.FetchResult), errs
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

const acmeFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:spring-sale
DTSTAMP:20240101T000000Z
DTSTART:20240305T090000Z
DTEND:20240305T100000Z
SUMMARY:Spring sale send
END:VEVENT
BEGIN:VEVENT
UID:newsletter
CREATED:20240310T120000Z
SUMMARY:Newsletter draft
END:VEVENT
END:VCALENDAR
`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceConfig{
		{ID: "acme-mkt", Name: "Acme", URL: "https://example.com/acme.ics", Entity: "acme"},
		{ID: "acme-ops", URL: "https://example.com/ops.ics", Entity: "acme"},
		{ID: "globex", URL: "https://example.com/globex.ics"},
		{ID: "disabled"},
	}
	cfg.Normalize()
	return cfg
}

func TestEntitiesAndSources(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, []model.Entity{
		{ID: "acme", Name: "Acme"},
		{ID: "globex", Name: "globex"},
	}, store.Entities(cfg.Sources), "feeds without a URL offer no entity")

	sources := store.Sources(cfg.Sources)
	require.Len(t, sources, 3)
	assert.Equal(t, ics.Source{ID: "acme-ops", URL: "https://example.com/ops.ics", Entity: "acme"}, sources[1])
}

func TestRefresher_RunOnce(t *testing.T) {
	cfg := testConfig()
	st := store.New()
	fetcher := new(MockFetcher)
	clock := MockClock{CurrentTime: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}

	acme := store.Sources(cfg.Sources)[0]
	fetcher.On("FetchAll", mock.Anything, mock.Anything).Return(
		[]ics.FetchResult{{Source: acme, Body: []byte(strings.ReplaceAll(acmeFeed, "\n", "\r\n"))}},
		[]error{errors.New("globex: 503")},
	).Once()

	r := store.NewRefresher(cfg, st, fetcher, clock)
	err := r.RunOnce(context.Background())
	assert.ErrorContains(t, err, "globex: 503", "partial failures are reported")

	records := st.Records()
	require.Len(t, records, 2)
	assert.Equal(t, clock.CurrentTime, st.UpdatedAt())
	assert.Len(t, st.Entities(), 2)

	b := calendar.Bucketer{Location: time.UTC}.Bucket(records, calendar.MatchEntity("acme"))
	assert.Len(t, b.Get(calendar.Date{Year: 2024, Month: time.March, Day: 5}), 1)
	assert.Len(t, b.Get(calendar.Date{Year: 2024, Month: time.March, Day: 10}), 1)
	fetcher.AssertExpectations(t)
}

func TestRefresher_AllSourcesFailedKeepsSnapshot(t *testing.T) {
	cfg := testConfig()
	st := store.New()
	previous := []calendar.Record{{ID: "keep", Effective: time.Now()}}
	st.Replace(previous, nil, time.Time{})

	fetcher := new(MockFetcher)
	fetcher.On("FetchAll", mock.Anything, mock.Anything).Return(
		[]ics.FetchResult{},
		[]error{errors.New("acme: timeout")},
	)

	r := store.NewRefresher(cfg, st, fetcher, nil)
	err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, store.ErrAllSourcesFailed)
	assert.Equal(t, previous, st.Records())
}

func TestRefresher_StartRejectsBadSchedule(t *testing.T) {
	r := store.NewRefresher(testConfig(), store.New(), new(MockFetcher), nil)
	assert.Error(t, r.Start(context.Background(), "every tuesday"))
}

func TestStore_ReplaceNil(t *testing.T) {
	st := store.New()
	st.Replace(nil, nil, time.Time{})
	assert.NotNil(t, st.Records())
	assert.NotNil(t, st.Entities())
}
