// Package ingest implements deduplication and idempotent ingestion of
// contacts and web-form data.
//
// Every incoming record flows through the same pipeline: Normalize cleans
// the raw fields, the Resolver maps candidate identity keys to at most one
// stored entity, and the Engine decides create vs. update vs. skip vs.
// duplicate and performs a single atomic write. The Orchestrator drives
// that pipeline over a batch and never lets one bad row abort the rest;
// the Linker composes it twice (Person, then Submission) for web-form
// submissions.
//
// The package depends only on the Repository interface defined in
// repository.go. It never imports net/http or database/sql.
package ingest
