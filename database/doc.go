// Package database builds connection URLs, engines, and transactional session
// factories on top of Bun, with commit/rollback lifecycle helpers, health
// checks, logging, and related utilities.
package database
