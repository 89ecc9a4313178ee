// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, querying, pagination, upserts, and session-scoped
// writes that stay pending until the session commits.
package repository
