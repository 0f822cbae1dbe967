package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/contact-hub/internal/domain"
)

// FormDefinition is a form as exposed by an external source.
type FormDefinition struct {
	ExternalID  string
	Title       string
	Description string
}

// SourceSubmission is one completed response from an external source.
type SourceSubmission struct {
	ExternalID  string
	SubmittedAt time.Time
	Payload     map[string]string
}

// Source is a read-only feed of form definitions and their completed
// submissions. Implementations only read; all identity decisions happen in
// Sync.
type Source interface {
	Forms(ctx context.Context) ([]FormDefinition, error)
	Submissions(ctx context.Context, formExternalID string) ([]SourceSubmission, error)
}

// SiteRef names the website a source's forms belong to.
type SiteRef struct {
	Name string
	URL  string
}

// Sync status values.
const (
	SyncCompleted = "completed"
	SyncTimeout   = "timeout"
	SyncCanceled  = "canceled"
	SyncFailed    = "failed"
)

// SyncError is one form or submission that failed during a sync.
type SyncError struct {
	Webform    string `json:"webform"`
	Submission string `json:"submission,omitempty"`
	Reason     string `json:"error"`
	Class      string `json:"class"`
}

// SyncReport summarizes one sync run. Rerunning an identical source yields
// only duplicates.
type SyncReport struct {
	WebsiteID           string      `json:"website_id"`
	WebformsFound       int         `json:"webforms_found"`
	WebformsCreated     int         `json:"webforms_created"`
	SubmissionsFound    int         `json:"submissions_found"`
	SubmissionsImported int         `json:"submissions_imported"`
	PersonsCreated      int         `json:"persons_created"`
	Duplicates          int         `json:"duplicates"`
	Skipped             int         `json:"skipped"`
	Errors              []SyncError `json:"errors"`
	Status              string      `json:"status"`
	StartedAt           time.Time   `json:"started_at"`
	FinishedAt          time.Time   `json:"finished_at"`
}

// Sync ingests every form and completed submission of src under site.
// Per-record failures are collected in the report. On context deadline the
// partial report is returned with status timeout and an error wrapping
// ErrTimeout; a cancelled context gives status canceled and an error
// wrapping context.Canceled.
func (o *Orchestrator) Sync(ctx context.Context, site SiteRef, src Source) (*SyncReport, error) {
	rep := &SyncReport{Errors: []SyncError{}, StartedAt: time.Now().UTC()}
	finish := func(status string, err error) (*SyncReport, error) {
		rep.Status = status
		rep.FinishedAt = time.Now().UTC()
		o.log.Info("sync finished", "site", site.URL, "status", status,
			"webforms_found", rep.WebformsFound, "webforms_created", rep.WebformsCreated,
			"submissions_found", rep.SubmissionsFound, "imported", rep.SubmissionsImported,
			"duplicates", rep.Duplicates, "skipped", rep.Skipped, "errors", len(rep.Errors))
		return rep, err
	}
	timedOut := func(err error) bool {
		return ctx.Err() != nil && (errors.Is(err, ctx.Err()) || errors.Is(err, ErrTimeout))
	}
	interrupted := func() (*SyncReport, error) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return finish(SyncTimeout, ErrTimeout)
		}
		return finish(SyncCanceled, fmt.Errorf("sync interrupted: %w", ctx.Err()))
	}

	siteOut, err := o.engine.UpsertWebsite(ctx, &domain.Website{Name: site.Name, URL: site.URL})
	if err != nil {
		if timedOut(err) {
			return interrupted()
		}
		return finish(SyncFailed, fmt.Errorf("ensure website %s: %w", site.URL, err))
	}
	rep.WebsiteID = siteOut.ID

	forms, err := src.Forms(ctx)
	if err != nil {
		if timedOut(err) {
			return interrupted()
		}
		return finish(SyncFailed, fmt.Errorf("list source forms: %w", err))
	}
	rep.WebformsFound = len(forms)

	linker := NewLinker(o.engine)
	for _, def := range forms {
		if ctx.Err() != nil {
			return interrupted()
		}
		name := def.Title
		if name == "" {
			name = def.ExternalID
		}
		formOut, err := o.engine.UpsertWebform(ctx, &domain.Webform{
			WebsiteID:   siteOut.ID,
			ExternalID:  def.ExternalID,
			Name:        name,
			Description: def.Description,
		})
		if err != nil {
			if timedOut(err) {
				return interrupted()
			}
			rep.Errors = append(rep.Errors, SyncError{Webform: def.ExternalID, Reason: err.Error(), Class: Class(err)})
			continue
		}
		if formOut.Status == domain.OutcomeCreated {
			rep.WebformsCreated++
		}

		subs, err := src.Submissions(ctx, def.ExternalID)
		if err != nil {
			if timedOut(err) {
				return interrupted()
			}
			rep.Errors = append(rep.Errors, SyncError{Webform: def.ExternalID, Reason: err.Error(), Class: Class(err)})
			continue
		}
		rep.SubmissionsFound += len(subs)

		for _, s := range subs {
			if ctx.Err() != nil {
				return interrupted()
			}
			payload := make(map[string]any, len(s.Payload))
			for k, v := range s.Payload {
				payload[k] = v
			}
			if _, ok := PayloadEmail(payload); !ok {
				rep.Skipped++
				o.log.Debug("submission without email skipped", "webform", def.ExternalID, "submission", s.ExternalID)
				continue
			}
			externalID := s.ExternalID
			res, err := linker.LinkAndCreate(ctx, SubmissionInput{
				Webform:       WebformRef{ID: formOut.ID},
				ExternalID:    &externalID,
				Payload:       payload,
				SourceWebsite: &site.URL,
			})
			if err != nil {
				if timedOut(err) {
					return interrupted()
				}
				rep.Errors = append(rep.Errors, SyncError{Webform: def.ExternalID, Submission: s.ExternalID, Reason: err.Error(), Class: Class(err)})
				continue
			}
			if res.Person.Status == domain.OutcomeCreated {
				rep.PersonsCreated++
			}
			switch res.Outcome.Status {
			case domain.OutcomeCreated:
				rep.SubmissionsImported++
			case domain.OutcomeDuplicate:
				rep.Duplicates++
			}
		}
	}
	return finish(SyncCompleted, nil)
}
