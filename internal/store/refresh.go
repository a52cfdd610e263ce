package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// ErrAllSourcesFailed is returned when no configured feed produced a body.
// The previous snapshot is kept in that case.
var ErrAllSourcesFailed = errors.New("store: all sources failed")

// Fetcher is the part of ics.Fetcher the refresher needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Refresher runs the fetch -> parse -> expand -> records pipeline and
// replaces the store snapshot with the result.
type Refresher struct {
	store    *Store
	fetcher  Fetcher
	clock    calendar.Clock
	sources  []ics.Source
	entities []model.Entity
	location *time.Location
	horizon  int

	// mu serializes refreshes triggered by cron and by the API.
	mu sync.Mutex
}

// NewRefresher builds a refresher for the feeds in cfg.
func NewRefresher(cfg *config.Config, st *Store, fetcher Fetcher, clock calendar.Clock) *Refresher {
	if clock == nil {
		clock = calendar.RealClock{}
	}
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", cfg.Timezone)
	}
	return &Refresher{
		store:    st,
		fetcher:  fetcher,
		clock:    clock,
		sources:  Sources(cfg.Sources),
		entities: Entities(cfg.Sources),
		location: loc,
		horizon:  cfg.HorizonDays,
	}
}

// Sources converts configured feeds into fetchable sources, skipping
// entries without a URL.
func Sources(cfgs []config.SourceConfig) []ics.Source {
	out := make([]ics.Source, 0, len(cfgs))
	for _, c := range cfgs {
		if c.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: c.ID, URL: c.URL, Entity: c.Entity})
	}
	return out
}

// Entities lists the distinct entities of the configured feeds in config
// order. The first named feed of an entity provides its display name.
// Feeds without a URL are skipped, matching Sources.
func Entities(cfgs []config.SourceConfig) []model.Entity {
	out := make([]model.Entity, 0, len(cfgs))
	index := make(map[string]int)
	for _, c := range cfgs {
		if c.Entity == "" || c.URL == "" {
			continue
		}
		if i, ok := index[c.Entity]; ok {
			if out[i].Name == out[i].ID && c.Name != "" {
				out[i].Name = c.Name
			}
			continue
		}
		name := c.Name
		if name == "" {
			name = c.Entity
		}
		index[c.Entity] = len(out)
		out = append(out, model.Entity{ID: c.Entity, Name: name})
	}
	return out
}

// RunOnce performs a single full refresh. Per-source failures are logged
// and joined into the returned error while the remaining feeds still
// replace the snapshot.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.clock.Now()
	now := start.In(r.location)
	rangeStart := now.AddDate(0, 0, -r.horizon)
	rangeEnd := now.AddDate(0, 0, r.horizon)

	results, fetchErrs := r.fetcher.FetchAll(ctx, r.sources)
	if len(r.sources) > 0 && len(results) == 0 {
		return fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(fetchErrs...))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			fetchErrs = append(fetchErrs, fmt.Errorf("store: parse %s: %w", res.Source.ID, err))
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: r.location,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		return fmt.Errorf("store: expand: %w", err)
	}

	records := ics.Records(expanded.Occurrences)
	unresolved := 0
	for _, rec := range records {
		if rec.Effective.IsZero() {
			unresolved++
			appLog.Debug("record has no effective date", "id", rec.ID)
		}
	}
	if unresolved > 0 {
		appLog.Warn("records without effective date will be skipped", "count", unresolved)
	}

	r.store.Replace(records, r.entities, r.clock.Now())
	appLog.Info("records refreshed",
		"sources", len(r.sources),
		"records", len(records),
		"truncated_uids", len(expanded.TruncatedEvents),
		"failed_sources", len(fetchErrs),
		"duration_ms", r.clock.Now().Sub(start).Milliseconds(),
	)
	return errors.Join(fetchErrs...)
}

// Start schedules RunOnce on the cron spec until ctx is done.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(r.location))
	if _, err := c.AddFunc(spec, func() {
		if err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("store: invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduled", "cron", spec, "timezone", r.location.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
