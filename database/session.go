/*
 * Copyright 2025 the Sethub authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
)

// Session is one unit of work against the database. It wraps a transaction:
// exactly one of Commit or Rollback must be invoked before the handle is
// released, and both end the session. A session must not be shared between
// concurrent callers; each caller acquires its own.
type Session struct {
	tx     bun.Tx
	logger Logger
	closed bool
}

// Tx exposes the underlying Bun transaction.
func (s *Session) Tx() *bun.Tx { return &s.tx }

// Closed reports whether the unit of work already ended.
func (s *Session) Closed() bool { return s.closed }

// NewSelect returns a select query builder running in this session.
func (s *Session) NewSelect() *bun.SelectQuery { return s.tx.NewSelect() }

// NewInsert returns an insert query builder running in this session.
func (s *Session) NewInsert() *bun.InsertQuery { return s.tx.NewInsert() }

// NewUpdate returns an update query builder running in this session.
func (s *Session) NewUpdate() *bun.UpdateQuery { return s.tx.NewUpdate() }

// NewDelete returns a delete query builder running in this session.
func (s *Session) NewDelete() *bun.DeleteQuery { return s.tx.NewDelete() }

// ExecContext runs a raw statement in this session.
func (s *Session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

// Commit persists the staged changes and ends the session.
func (s *Session) Commit() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	return s.tx.Commit()
}

// Rollback discards the staged changes and ends the session.
func (s *Session) Rollback() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	return s.tx.Rollback()
}

// Close releases the session: if the unit of work is still open it is rolled
// back; an already-ended session is a no-op. Safe to defer.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := s.Rollback()
	if err != nil && s.logger != nil {
		s.logger.Warn("Session close rollback failed", "error", err)
	}
	return err
}

// SessionFactory produces new sessions bound to a fixed engine.
type SessionFactory struct {
	engine *Engine
	params *SessionParams
	logger Logger
}

// NewSessionFactory builds a session factory bound to the engine.
func NewSessionFactory(engine *Engine, params *SessionParams) *SessionFactory {
	if params == nil {
		params = &SessionParams{}
	}
	return &SessionFactory{
		engine: engine,
		params: params,
		logger: GetLogger(),
	}
}

// Engine returns the engine this factory is bound to.
func (f *SessionFactory) Engine() *Engine { return f.engine }

// Session begins a fresh unit of work. The caller owns the returned handle
// and must end it with Commit, Rollback, or Close.
func (f *SessionFactory) Session(ctx context.Context) (*Session, error) {
	db := f.engine.DB()
	if db == nil {
		return nil, ErrNotConnected
	}

	tx, err := db.BeginTx(ctx, f.txOptions())
	if err != nil {
		return nil, err
	}
	return &Session{tx: tx, logger: f.logger}, nil
}

// RunInSession acquires a session, runs fn, and guarantees release on every
// exit path. An error from fn rolls back. On success the session is committed
// when AutoCommit is enabled; otherwise fn must commit itself and anything
// left uncommitted is rolled back.
func (f *SessionFactory) RunInSession(ctx context.Context, fn func(*Session) error) error {
	session, err := f.Session(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// release even when fn panics
		_ = session.Close()
	}()

	if err := fn(session); err != nil {
		return err
	}

	if f.params.AutoCommit && !session.Closed() {
		return session.Commit()
	}
	return session.Close()
}

// Guard returns a single-use-per-cycle session guard bound to this factory.
func (f *SessionFactory) Guard() *SessionGuard {
	return &SessionGuard{factory: f}
}

func (f *SessionFactory) txOptions() *sql.TxOptions {
	opts := &sql.TxOptions{ReadOnly: f.params.ReadOnly}
	switch strings.ToLower(strings.TrimSpace(f.params.Isolation)) {
	case "read uncommitted":
		opts.Isolation = sql.LevelReadUncommitted
	case "read committed":
		opts.Isolation = sql.LevelReadCommitted
	case "repeatable read":
		opts.Isolation = sql.LevelRepeatableRead
	case "serializable":
		opts.Isolation = sql.LevelSerializable
	}
	return opts
}

// SessionGuard scopes one session per Enter/Exit cycle. Exit always rolls
// back and closes whatever is still attached, so work is only persisted when
// the caller commits explicitly before exiting. Commit and Rollback both
// close the session and clear the stored reference, making the guard
// single-use until the next Enter.
type SessionGuard struct {
	factory *SessionFactory
	session *Session
}

// Enter acquires a session from the factory. Entering twice without an
// intervening Exit, Commit, or Rollback fails.
func (g *SessionGuard) Enter(ctx context.Context) error {
	if g.session != nil {
		return ErrSessionActive
	}
	session, err := g.factory.Session(ctx)
	if err != nil {
		return err
	}
	g.session = session
	return nil
}

// Session returns the attached session, or nil outside an Enter/Exit cycle.
func (g *SessionGuard) Session() *Session { return g.session }

// Commit persists the attached session's work, closes it, and clears the
// stored reference.
func (g *SessionGuard) Commit() error {
	if g.session == nil {
		return ErrNoSession
	}
	err := g.session.Commit()
	g.session = nil
	return err
}

// Rollback discards the attached session's work, closes it, and clears the
// stored reference.
func (g *SessionGuard) Rollback() error {
	if g.session == nil {
		return ErrNoSession
	}
	err := g.session.Rollback()
	g.session = nil
	return err
}

// Exit ends the cycle: a still-attached session is rolled back and closed.
// Exiting after Commit or Rollback is a no-op. Safe to defer.
func (g *SessionGuard) Exit() error {
	if g.session == nil {
		return nil
	}
	err := g.session.Close()
	g.session = nil
	return err
}
