// Package domain defines the core business types for the coliving campaign
// engine.
//
// Types in this package are pure value objects with no behavior beyond small
// pure helpers. They are the shared language between the catalog lookup, the
// recommendation assembler, the renderer, the delivery client, and the
// orchestrator.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
