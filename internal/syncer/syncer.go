// Package syncer runs the acquisition pipeline: handshake, three
// concurrent source crawls with weighted progress, per-source enrichment,
// the fuzzy cross-source merge, and the final persisted upsert. A run never
// propagates a failure past its own boundary; every outcome resolves to a
// SyncResult.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/dedup"
	"github.com/Leejhua/concert-calendar/internal/enrich"
	"github.com/Leejhua/concert-calendar/internal/metrics"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/mtop"
	"github.com/Leejhua/concert-calendar/internal/source"
	"github.com/Leejhua/concert-calendar/internal/store"
)

// Handshaker is implemented by sources that need a token-issuing bootstrap
// call before crawling (the primary platform).
type Handshaker interface {
	Handshake(ctx context.Context) error
}

type Syncer struct {
	cfg     config.Config
	build   func(sess *mtop.Session) []source.Source
	cls     enrich.Classifier // nil disables enrichment
	events  store.EventStore
	status  *store.StatusStore
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex // serializes the Trigger guard
	running bool       // a run launched by Trigger is in flight
}

func New(cfg config.Config, events store.EventStore, status *store.StatusStore, m *metrics.Metrics, cls enrich.Classifier) *Syncer {
	return &Syncer{
		cfg:     cfg,
		build:   func(sess *mtop.Session) []source.Source { return source.Build(cfg, sess) },
		cls:     cls,
		events:  events,
		status:  status,
		metrics: m,
		now:     time.Now,
	}
}

// NewSession assembles the per-run credential state from configuration.
// Manual cookie/token values (config or a parsed curl hint) take precedence;
// otherwise the run starts token-less and performs the handshake.
func (s *Syncer) NewSession() *mtop.Session {
	d := s.cfg.Damai
	appKey := d.AppKey
	if appKey == "" {
		appKey = "12574478"
	}
	referer := d.Referer
	if referer == "" {
		referer = "https://m.damai.cn/shows/category.html?categoryId=2394"
	}
	return &mtop.Session{
		AppKey:        appKey,
		TokenWithTime: d.TokenWithTime,
		Cookie:        d.Cookie,
		Referer:       referer,
	}
}

// TriggerOutcome tells the caller why a trigger was or was not accepted.
type TriggerOutcome int

const (
	TriggerStarted TriggerOutcome = iota
	TriggerBusy                   // a run is in flight and not stale
	TriggerSkipped                // data still fresh, cooldown active
	TriggerBadRequest             // credential hint could not be parsed
)

// Trigger starts a background run unless one is already in flight or the
// cooldown after a completed run is still active. A "running" status older
// than the staleness window is presumed abandoned and superseded. The whole
// check-then-start is serialized under s.mu so concurrent triggers cannot
// each pass the guard and launch overlapping runs.
func (s *Syncer) Trigger(credentialHint string) (TriggerOutcome, string) {
	staleness := s.cfg.Sync.Staleness
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	cooldown := s.cfg.Sync.Cooldown
	if cooldown <= 0 {
		cooldown = 4 * time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status.Get()
	age := time.Duration(s.now().UnixMilli()-st.LastUpdated) * time.Millisecond
	if (s.running || st.State == model.StateRunning) && age < staleness {
		return TriggerBusy, "sync already in progress"
	}
	if st.State == model.StateCompleted && age < cooldown {
		left := (cooldown - age).Round(time.Minute)
		return TriggerSkipped, fmt.Sprintf("data is fresh, cooldown active (%s remaining)", left)
	}

	sess := s.NewSession()
	if credentialHint != "" {
		cookie, token, err := ParseCurlCredentials(credentialHint)
		if err != nil {
			return TriggerBadRequest, err.Error()
		}
		sess.Cookie = cookie
		sess.TokenWithTime = token
	}

	runID := uuid.NewString()
	msg := "initializing auto-handshake"
	if sess.HasToken() {
		msg = "initializing with manual token"
	}
	s.status.Set(store.StatusPatch{
		State:       store.String(model.StateRunning),
		Progress:    store.Int(0),
		Message:     store.String(msg),
		RunID:       &runID,
		ClearResult: true,
	})

	s.running = true
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		s.Run(context.Background(), sess)
	}()
	return TriggerStarted, "sync started in background"
}

// Run executes one full sync synchronously and records the terminal status.
// There is no mid-run cancellation: once started, a run completes or fails.
func (s *Syncer) Run(ctx context.Context, sess *mtop.Session) model.SyncResult {
	start := s.now()
	srcs := s.build(sess)
	if len(srcs) == 0 {
		return s.fail("no sources configured")
	}

	if !sess.HasToken() {
		hs, ok := srcs[0].(Handshaker)
		if !ok {
			return s.fail("no credentials held and primary source cannot handshake")
		}
		if err := hs.Handshake(ctx); err != nil {
			return s.fail(fmt.Sprintf("handshake failed: %v", err))
		}
		log.Printf("sync: handshake acquired session token")
	}

	tracker := newTracker(srcs, func(msg string, overall int) {
		s.status.Set(store.StatusPatch{
			State:    store.String(model.StateRunning),
			Progress: store.Int(overall),
			Message:  store.String(msg),
		})
		if s.metrics != nil {
			s.metrics.SyncProgress.Set(float64(overall))
		}
	})

	// Fail-open fan-out: a failing source contributes zero events but never
	// aborts the run.
	results := make([][]model.Event, len(srcs))
	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			defer tracker.complete(i, src.Name())
			evs, err := src.Crawl(ctx, func(msg string, pct int) { tracker.update(i, msg, pct) })
			if err != nil {
				log.Printf("sync: %s failed: %v", src.Name(), err)
				return
			}
			results[i] = evs
		}(i, src)
	}
	wg.Wait()

	for i, src := range srcs {
		log.Printf("sync: %s fetched %d events", src.Name(), len(results[i]))
		if s.metrics != nil {
			s.metrics.EventsFetched.WithLabelValues(src.Name()).Add(float64(len(results[i])))
		}
	}

	// Each source's own blacklist/tag pre-filtering must apply before
	// cross-source comparison, so enrichment runs per list.
	if s.cls != nil {
		for i := range results {
			results[i] = enrich.Enrich(ctx, results[i], s.cls)
		}
	}

	combined := results[0]
	for _, evs := range results[1:] {
		combined = dedup.Merge(combined, evs)
	}
	totalNew := len(combined)

	previous, err := s.events.LoadAll(ctx)
	if err != nil {
		return s.fail(fmt.Sprintf("load persisted events: %v", err))
	}
	final := dedup.UpsertByID(previous, combined)
	if err := s.events.SaveAll(ctx, final); err != nil {
		return s.fail(fmt.Sprintf("persist events: %v", err))
	}

	res := model.SyncResult{
		Success:       true,
		TotalNew:      totalNew,
		TotalCombined: len(final),
	}
	s.status.Set(store.StatusPatch{
		State:    store.String(model.StateCompleted),
		Progress: store.Int(100),
		Message:  store.String("sync completed"),
		Result:   &res,
	})
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues("success").Inc()
		s.metrics.EventsStored.Set(float64(len(final)))
		s.metrics.LastSuccessTS.Set(float64(s.now().Unix()))
	}
	log.Printf("sync: run finished in %s, new=%d combined=%d",
		s.now().Sub(start).Truncate(time.Millisecond), totalNew, len(final))
	return res
}

func (s *Syncer) fail(msg string) model.SyncResult {
	log.Printf("sync: %s", msg)
	res := model.SyncResult{Success: false, Message: msg}
	s.status.Set(store.StatusPatch{
		State:   store.String(model.StateError),
		Message: store.String(msg),
		Result:  &res,
	})
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues("failure").Inc()
	}
	return res
}
