// Package syncjob runs the Drupal source sync as a bounded, single-flight
// job and archives its report.
package syncjob

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/contact-hub/internal/pkg/distlock"
	"github.com/ignite/contact-hub/internal/pkg/logger"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/storage"
)

// LockKey is the distributed lock shared by every sync trigger.
const LockKey = "contact-hub:sync:drupal"

var (
	// ErrSyncInProgress is returned when another sync holds the lock.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoSource is returned when no source database is configured.
	ErrNoSource = errors.New("sync source not configured")
)

// Archiver stores finished reports. *storage.Storage satisfies it.
type Archiver interface {
	SaveReport(ctx context.Context, category, name string, data interface{}) (string, error)
}

// Result is a sync report plus where it was archived.
type Result struct {
	*ingest.SyncReport
	ReportLocation string `json:"report_location,omitempty"`
}

// Runner triggers syncs. It is safe for concurrent use; concurrent runs
// are serialized by the lock, not queued.
type Runner struct {
	orch    *ingest.Orchestrator
	source  ingest.Source
	site    ingest.SiteRef
	timeout time.Duration
	newLock func() distlock.DistLock
	archive Archiver
	log     *logger.Logger
}

// Options configures a Runner. A zero Timeout disables the deadline; a nil
// NewLock falls back to an in-process lock; a nil Archive skips archiving.
type Options struct {
	Site    ingest.SiteRef
	Timeout time.Duration
	NewLock func() distlock.DistLock
	Archive Archiver
	Log     *logger.Logger
}

// NewRunner builds a runner over src. src may be nil, in which case Run
// returns ErrNoSource.
func NewRunner(orch *ingest.Orchestrator, src ingest.Source, opts Options) *Runner {
	r := &Runner{
		orch:    orch,
		source:  src,
		site:    opts.Site,
		timeout: opts.Timeout,
		newLock: opts.NewLock,
		archive: opts.Archive,
		log:     opts.Log,
	}
	if r.newLock == nil {
		r.newLock = func() distlock.DistLock { return distlock.NewLocalLock(LockKey) }
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.With("component", "syncjob")
	return r
}

// Run performs one sync. On timeout the partial report is returned together
// with an error wrapping ingest.ErrTimeout; the report is archived either way.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var rep *ingest.SyncReport
	err := distlock.Run(ctx, r.newLock(), func(ctx context.Context) error {
		var err error
		rep, err = r.orch.Sync(ctx, r.site, r.source)
		return err
	})
	if errors.Is(err, distlock.ErrLocked) {
		r.log.Warn("sync skipped, lock held", "site", r.site.URL)
		return nil, ErrSyncInProgress
	}
	if rep == nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ingest.ErrTimeout
		}
		return nil, err
	}

	res := &Result{SyncReport: rep}
	if r.archive != nil {
		loc, aerr := r.archive.SaveReport(context.WithoutCancel(ctx), storage.CategorySyncs, "drupal-"+rep.Status, rep)
		if aerr != nil {
			r.log.Error("failed to archive sync report", "error", aerr)
		}
		res.ReportLocation = loc
	}
	return res, err
}
