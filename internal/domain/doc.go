// Package domain defines the core business types for the contact hub.
//
// Types in this package are plain value objects shared by handlers,
// services, and repositories. They carry no database or HTTP behavior.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Optional columns are *string: nil means NULL, never ""
//   - Constants and enums belong here
package domain
