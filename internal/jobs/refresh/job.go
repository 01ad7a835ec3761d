package refresh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"jackdaw/internal/cidr"
	"jackdaw/internal/config"
	"jackdaw/internal/database"
	"jackdaw/internal/delegated"
	"jackdaw/internal/domain"
	"jackdaw/internal/export"
	"jackdaw/internal/geolite"
	"jackdaw/internal/lookup"
	"jackdaw/internal/registry"
)

// Outcome captures the result of refreshing one ledger source.
type Outcome struct {
	Registry      string          `json:"registry"`
	Source        string          `json:"source"`
	NotModified   bool            `json:"not_modified,omitempty"`
	Stats         delegated.Stats `json:"stats"`
	IPv4Countries int             `json:"ipv4_countries"`
	IPv6Countries int             `json:"ipv6_countries"`
	DurationMs    int64           `json:"duration_ms"`
	CrossCheck    *geolite.Report `json:"cross_check,omitempty"`
	Error         string          `json:"error,omitempty"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// Job refreshes every enabled ledger source and keeps the merged results
// available for lookups and list serving. A failed source keeps its previous
// snapshot, exports and index entries until a later run succeeds.
type Job struct {
	client *registry.Client

	// Resolver overrides the GeoLite database configured in settings.
	// Tests inject fakes here; production leaves it nil.
	Resolver geolite.CountryResolver

	runGroup singleflight.Group
	trigger  chan string

	mu        sync.Mutex
	snapshots map[string]delegated.Groups
	outcomes  map[string]Outcome

	index  atomic.Pointer[lookup.Index]
	groups atomic.Pointer[delegated.Groups]
}

func NewJob(client *registry.Client) *Job {
	return &Job{
		client:    client,
		trigger:   make(chan string, 1),
		snapshots: make(map[string]delegated.Groups),
		outcomes:  make(map[string]Outcome),
	}
}

// Run refreshes all enabled sources once. Concurrent calls share a single
// execution. The returned error reports how many sources failed; outcomes
// carry the per-source details either way.
func (j *Job) Run(ctx context.Context) ([]Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result, err, _ := j.runGroup.Do("refresh", func() (interface{}, error) {
		return j.runAll(ctx)
	})

	outcomes, _ := result.([]Outcome)
	return outcomes, err
}

// TriggerRefresh schedules an asynchronous run on the refresh routine. It
// reports false when a trigger is already pending.
func (j *Job) TriggerRefresh(reason string) bool {
	select {
	case j.trigger <- reason:
		return true
	default:
		return false
	}
}

// Index returns the current lookup index, or nil before the first
// successful run.
func (j *Job) Index() *lookup.Index {
	return j.index.Load()
}

// Groups returns the merged per-country block lists of the last successful
// runs across all sources.
func (j *Job) Groups() delegated.Groups {
	groups := j.groups.Load()
	if groups == nil {
		return nil
	}
	return *groups
}

// Outcomes returns the most recent outcome of every known source, ordered
// by registry name.
func (j *Job) Outcomes() []Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()

	outcomes := make([]Outcome, 0, len(j.outcomes))
	for _, outcome := range j.outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, k int) bool {
		return outcomes[i].Registry < outcomes[k].Registry
	})
	return outcomes
}

func (j *Job) runAll(ctx context.Context) ([]Outcome, error) {
	cfg := config.GetConfig()
	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		return nil, errors.New("refresh: no ledger sources enabled")
	}

	resolver, closeResolver := j.resolverForRun(cfg)
	defer closeResolver()

	outcomes := make([]Outcome, 0, len(sources))
	var failed int
	var changed bool

	for _, source := range sources {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}

		outcome := j.refreshSource(ctx, source, cfg, resolver)
		outcome.CompletedAt = time.Now().UTC()

		if outcome.Error != "" {
			failed++
			log.Error("Ledger refresh source failed",
				"registry", source.Registry,
				"error", outcome.Error,
			)
		} else if !outcome.NotModified {
			changed = true
		}

		j.mu.Lock()
		j.outcomes[source.Registry] = outcome
		j.mu.Unlock()

		outcomes = append(outcomes, outcome)
	}

	if changed {
		j.rebuild()
	}

	if failed > 0 {
		return outcomes, fmt.Errorf("refresh: %d of %d sources failed", failed, len(sources))
	}
	return outcomes, nil
}

func (j *Job) refreshSource(ctx context.Context, source config.Source, cfg config.Config, resolver geolite.CountryResolver) Outcome {
	started := time.Now()
	outcome := Outcome{Registry: source.Registry, Source: source.URL}

	path, notModified, err := j.client.Fetch(ctx, source.Registry, source.URL)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if notModified && j.hasSnapshot(source.Registry) {
		outcome.NotModified = true
		outcome.DurationMs = time.Since(started).Milliseconds()
		j.logUnchanged(ctx, source.Registry)
		return outcome
	}

	file, err := os.Open(path)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	snap, err := delegated.ParseReader(ctx, file, delegated.Options{Workers: cfg.Refresh.Workers})
	file.Close()
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	groups := delegated.BuildGroups(snap.IPRecords())

	exporter := export.Exporter{Dir: filepath.Join(cfg.Export.Directory, source.Registry)}
	meta := export.Meta{
		Registry:    source.Registry,
		Source:      source.URL,
		LastUpdated: time.Now().UTC(),
	}
	if err := exporter.Write(snap, groups, meta, cfg.Export.CountryFilter); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	j.mu.Lock()
	j.snapshots[source.Registry] = groups
	j.mu.Unlock()

	outcome.Stats = snap.Stats
	outcome.IPv4Countries = len(groups.Countries(domain.FamilyIPv4))
	outcome.IPv6Countries = len(groups.Countries(domain.FamilyIPv6))
	outcome.DurationMs = time.Since(started).Milliseconds()

	if resolver != nil {
		report := geolite.CrossCheck(groups, resolver, cfg.GeoLite.SamplePerCountry)
		outcome.CrossCheck = &report
		log.Info("GeoLite cross-check finished",
			"registry", source.Registry,
			"checked", report.Checked,
			"agreed", report.Agreed,
			"disagreed", report.Disagreed,
			"unresolved", report.Unresolved,
		)
	}

	j.archiveRun(ctx, source, snap, outcome)

	log.Info("Ledger source refreshed",
		"registry", source.Registry,
		"processed", snap.Stats.ProcessedLines,
		"skipped", snap.Stats.SkippedLines,
		"ipv4", snap.Stats.IPv4Entries,
		"ipv6", snap.Stats.IPv6Entries,
		"asn", snap.Stats.ASNEntries,
		"duration", time.Since(started),
	)

	return outcome
}

// rebuild merges the last good snapshot of every source and swaps the lookup
// index. Readers keep the old index until the swap.
func (j *Job) rebuild() {
	merged := j.mergedSnapshots()
	index := lookup.Build(merged)

	j.index.Store(index)
	j.groups.Store(&merged)

	log.Debug("Lookup index rebuilt", "prefixes", index.Size())
}

func (j *Job) mergedSnapshots() delegated.Groups {
	j.mu.Lock()
	defer j.mu.Unlock()

	merged := make(delegated.Groups)
	for _, groups := range j.snapshots {
		for key, blocks := range groups {
			merged[key] = append(merged[key], blocks...)
		}
	}
	for key := range merged {
		cidr.SortPrefixes(merged[key])
	}
	return merged
}

func (j *Job) hasSnapshot(registryName string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.snapshots[registryName]
	return ok
}

// resolverForRun picks the injected resolver or opens the configured GeoLite
// database for the duration of one run.
func (j *Job) resolverForRun(cfg config.Config) (geolite.CountryResolver, func()) {
	noop := func() {}
	if !cfg.GeoLite.CrossCheck {
		return nil, noop
	}
	if j.Resolver != nil {
		return j.Resolver, noop
	}
	if cfg.GeoLite.DatabasePath == "" {
		return nil, noop
	}

	db, err := geolite.Open(cfg.GeoLite.DatabasePath)
	if err != nil {
		log.Warn("GeoLite cross-check skipped",
			"path", cfg.GeoLite.DatabasePath,
			"error", err,
		)
		return nil, noop
	}
	return db, func() {
		if err := db.Close(); err != nil {
			log.Warn("Closing GeoLite database failed", "error", err)
		}
	}
}

// archiveRun persists the run and its accepted records when a database is
// connected. Archive failures are logged and never fail the refresh; the
// exports and the index already carry the new data.
func (j *Job) archiveRun(ctx context.Context, source config.Source, snap *delegated.Snapshot, outcome Outcome) {
	if database.DB == nil {
		return
	}

	run := &domain.Run{
		Registry:       source.Registry,
		Source:         source.URL,
		TotalLines:     snap.Stats.TotalLines,
		ProcessedLines: snap.Stats.ProcessedLines,
		SkippedLines:   snap.Stats.SkippedLines,
		IPv4Entries:    snap.Stats.IPv4Entries,
		IPv6Entries:    snap.Stats.IPv6Entries,
		ASNEntries:     snap.Stats.ASNEntries,
		IPv4Countries:  outcome.IPv4Countries,
		IPv6Countries:  outcome.IPv6Countries,
		DurationMs:     outcome.DurationMs,
	}

	if err := database.SaveRun(ctx, run, buildAllocations(snap)); err != nil {
		log.Error("Run archive failed", "registry", source.Registry, "error", err)
		return
	}
	log.Debug("Run archived", "registry", source.Registry, "run_id", run.ID)
}

func buildAllocations(snap *delegated.Snapshot) []domain.Allocation {
	records := snap.IPRecords()
	allocations := make([]domain.Allocation, 0, len(records)+len(snap.ASN))
	for _, rec := range records {
		allocations = append(allocations, allocationFromRecord(rec))
	}
	for _, rec := range snap.ASN {
		allocations = append(allocations, allocationFromRecord(rec))
	}
	return allocations
}

func allocationFromRecord(rec domain.Record) domain.Allocation {
	return domain.Allocation{
		Registry: rec.Registry,
		Country:  rec.Country,
		Family:   rec.Family,
		Start:    rec.Start,
		Count:    rec.Count,
		Date:     rec.Date,
		Status:   rec.Status,
		End:      rec.End,
		CIDRs:    domain.CIDRListFromPrefixes(rec.Blocks),
	}
}

// logUnchanged enriches the skip log with the archive timestamp when one is
// available.
func (j *Job) logUnchanged(ctx context.Context, registryName string) {
	if database.DB != nil {
		if last, err := database.LatestRun(ctx, registryName); err == nil && last != nil {
			log.Info("Ledger unchanged since last run",
				"registry", registryName,
				"archived_at", last.CreatedAt,
			)
			return
		}
	}
	log.Info("Ledger unchanged since last run", "registry", registryName)
}
