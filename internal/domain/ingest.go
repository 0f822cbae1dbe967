package domain

import (
	"fmt"
	"strings"
)

// EntityKind names one of the four ingested entity tables.
type EntityKind string

const (
	KindPerson     EntityKind = "person"
	KindWebsite    EntityKind = "website"
	KindWebform    EntityKind = "webform"
	KindSubmission EntityKind = "webform_submission"
)

// ConflictPolicy selects what happens when an incoming record matches an
// existing entity.
type ConflictPolicy string

const (
	PolicyUpdate ConflictPolicy = "update"
	PolicySkip   ConflictPolicy = "skip"
	PolicyReject ConflictPolicy = "reject"
)

// ParseConflictPolicy parses a caller-supplied policy string. An empty
// string yields def. "error" is accepted as an alias of reject.
func ParseConflictPolicy(s string, def ConflictPolicy) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "update":
		return PolicyUpdate, nil
	case "skip":
		return PolicySkip, nil
	case "reject", "error":
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

// OutcomeStatus is the per-record result of an upsert.
type OutcomeStatus string

const (
	OutcomeCreated   OutcomeStatus = "created"
	OutcomeUpdated   OutcomeStatus = "updated"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeDuplicate OutcomeStatus = "duplicate"
)

// Outcome reports what an upsert did. ID is the affected row, or the
// existing row for skipped and duplicate outcomes. Via names the identity
// key that matched, empty for creates.
type Outcome struct {
	Kind   EntityKind    `json:"kind"`
	Status OutcomeStatus `json:"status"`
	ID     string        `json:"id"`
	Via    string        `json:"via,omitempty"`
}
