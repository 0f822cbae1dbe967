package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/contact-hub/internal/service/ingest"
)

// PostgreSQL error codes translated into ingest errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translate maps constraint violations onto the ingest taxonomy. A unique
// violation here means a write lost a race the insert-if-absent path did
// not cover and is retryable.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ingest.ErrStorageConflict, pqErr.Constraint)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ingest.ErrUnknownReference, pqErr.Constraint)
	}
	return err
}

// validID reports whether id can be compared with a UUID column. Ids that
// are not UUIDs cannot match any row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
