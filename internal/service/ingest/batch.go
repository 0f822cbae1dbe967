package ingest

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/logger"
)

// RowError is one failed record of a batch. Row is 1-based and counts blank
// rows, so it lines up with the caller's input.
type RowError struct {
	Row    int               `json:"row"`
	Reason string            `json:"error"`
	Class  string            `json:"class"`
	Data   map[string]string `json:"data"`
}

// RowOutcome is the result of one successfully processed record.
type RowOutcome struct {
	Row int `json:"row"`
	domain.Outcome
}

// BatchStats aggregates the per-record results of one import.
type BatchStats struct {
	Rows       int          `json:"rows"`
	Created    int          `json:"created"`
	Updated    int          `json:"updated"`
	Skipped    int          `json:"skipped"`
	Duplicates int          `json:"duplicates"`
	Errors     []RowError   `json:"errors"`
	Outcomes   []RowOutcome `json:"outcomes,omitempty"`
	TimedOut   bool         `json:"timed_out,omitempty"`
	Duration   string       `json:"duration"`
}

// Orchestrator drives normalize → resolve → upsert over a sequence of raw
// records. No record error aborts a batch.
type Orchestrator struct {
	engine  *Engine
	workers int
	log     *logger.Logger
}

// NewOrchestrator creates a batch orchestrator. workers <= 1 processes rows
// sequentially.
func NewOrchestrator(engine *Engine, workers int, log *logger.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Default()
	}
	return &Orchestrator{engine: engine, workers: workers, log: log.With("component", "ingest.batch")}
}

// Engine returns the upsert engine the orchestrator writes through.
func (o *Orchestrator) Engine() *Engine { return o.engine }

type rowResult struct {
	done  bool
	blank bool
	out   domain.Outcome
	err   error
}

type upsertFunc func(ctx context.Context, f Fields) (domain.Outcome, error)

// ImportPersons upserts each row as a Person under policy.
func (o *Orchestrator) ImportPersons(ctx context.Context, rows []map[string]string, policy domain.ConflictPolicy) *BatchStats {
	return o.run(ctx, domain.KindPerson, rows, personIdentityFields, func(ctx context.Context, f Fields) (domain.Outcome, error) {
		return o.engine.UpsertPerson(ctx, f, policy)
	})
}

// ImportWebsites creates each row as a Website. Rows carry name, url and
// optionally external_id and dedup_key. Websites are append-only, so an
// existing match is always reported as a duplicate.
func (o *Orchestrator) ImportWebsites(ctx context.Context, rows []map[string]string) *BatchStats {
	return o.run(ctx, domain.KindWebsite, rows, websiteIdentityFields, func(ctx context.Context, f Fields) (domain.Outcome, error) {
		name, _ := f.Get("name")
		url, _ := f.Get("url")
		return o.engine.UpsertWebsite(ctx, &domain.Website{
			Name:       name,
			URL:        url,
			ExternalID: f.Ptr(domain.FieldExternalID),
			DedupKey:   f.Ptr(domain.FieldDedupKey),
		})
	})
}

// Columns that can tie two rows to the same stored entity.
var (
	personIdentityFields  = []string{domain.FieldDedupKey, domain.FieldExternalID, domain.FieldEmail}
	websiteIdentityFields = []string{domain.FieldDedupKey, domain.FieldExternalID, "url"}
)

func (o *Orchestrator) run(ctx context.Context, kind domain.EntityKind, rows []map[string]string, identity []string, upsert upsertFunc) *BatchStats {
	start := time.Now()
	records := make([]Fields, len(rows))
	for i, raw := range rows {
		records[i] = Normalize(raw)
	}
	results := make([]rowResult, len(rows))

	process := func(i int) {
		if ctx.Err() != nil {
			return
		}
		if records[i].Blank() {
			results[i] = rowResult{done: true, blank: true}
			return
		}
		out, err := upsert(ctx, records[i])
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = ErrTimeout
		}
		results[i] = rowResult{done: true, out: out, err: err}
	}

	if o.workers == 1 || len(rows) < 2 {
		for i := range records {
			process(i)
		}
	} else {
		shards := make([][]int, o.workers)
		for i, group := range identityGroups(records, identity) {
			n := group % o.workers
			shards[n] = append(shards[n], i)
		}
		var g errgroup.Group
		for _, shard := range shards {
			if len(shard) == 0 {
				continue
			}
			g.Go(func() error {
				for _, i := range shard {
					process(i)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	stats := tally(rows, results)
	stats.Duration = time.Since(start).Round(time.Millisecond).String()
	if stats.TimedOut {
		o.log.Warn("batch stopped at deadline", "kind", kind, "rows", stats.Rows, "created", stats.Created,
			"updated", stats.Updated, "skipped", stats.Skipped, "errors", len(stats.Errors))
	} else {
		o.log.Info("batch complete", "kind", kind, "rows", stats.Rows, "created", stats.Created,
			"updated", stats.Updated, "skipped", stats.Skipped, "duplicates", stats.Duplicates,
			"errors", len(stats.Errors), "duration", stats.Duration)
	}
	return stats
}

// identityGroups numbers rows so that any two rows sharing a value in one of
// the identity columns get the same group, transitively. Groups are numbered
// in order of first appearance. Rows in one group must run on one worker in
// input order; distinct groups touch disjoint keys.
func identityGroups(records []Fields, identity []string) []int {
	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	owner := make(map[string]int)
	for i, f := range records {
		for _, col := range identity {
			v, ok := f[col]
			if !ok {
				continue
			}
			key := col + "\x00" + v
			j, seen := owner[key]
			if !seen {
				owner[key] = i
				continue
			}
			if a, b := find(i), find(j); a != b {
				if a < b {
					parent[b] = a
				} else {
					parent[a] = b
				}
			}
		}
	}

	groups := make([]int, len(records))
	ordinal := make(map[int]int)
	for i := range records {
		root := find(i)
		n, ok := ordinal[root]
		if !ok {
			n = len(ordinal)
			ordinal[root] = n
		}
		groups[i] = n
	}
	return groups
}

func tally(rows []map[string]string, results []rowResult) *BatchStats {
	stats := &BatchStats{Rows: len(rows), Errors: []RowError{}}
	for i, r := range results {
		row := i + 1
		switch {
		case !r.done:
			stats.TimedOut = true
		case r.blank:
			stats.Skipped++
		case r.err != nil:
			if errors.Is(r.err, ErrValidation) {
				stats.Skipped++
			}
			if errors.Is(r.err, ErrTimeout) {
				stats.TimedOut = true
			}
			stats.Errors = append(stats.Errors, RowError{Row: row, Reason: r.err.Error(), Class: Class(r.err), Data: rows[i]})
		default:
			stats.count(r.out.Status)
			stats.Outcomes = append(stats.Outcomes, RowOutcome{Row: row, Outcome: r.out})
		}
	}
	return stats
}

func (s *BatchStats) count(status domain.OutcomeStatus) {
	switch status {
	case domain.OutcomeCreated:
		s.Created++
	case domain.OutcomeUpdated:
		s.Updated++
	case domain.OutcomeSkipped:
		s.Skipped++
	case domain.OutcomeDuplicate:
		s.Skipped++
		s.Duplicates++
	}
}
