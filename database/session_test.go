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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type account struct {
	bun.BaseModel `bun:"table:account,alias:a"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

func newTestDatabase(t *testing.T, session SessionParams) *Database {
	t.Helper()

	cfg := &Config{
		URLParams: URLParams{
			Driver:   DriverSQLite,
			Database: filepath.Join(t.TempDir(), "sessions"),
		},
		EngineParams:  EngineParams{MaxIdleConns: 2, MaxOpenConns: 4},
		SessionParams: session,
	}

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Connect(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Engine().DB().ExecContext(context.Background(),
		"CREATE TABLE account (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)")
	require.NoError(t, err)
	return db
}

func countAccounts(t *testing.T, db *Database) int {
	t.Helper()
	count, err := db.Engine().DB().NewSelect().Model((*account)(nil)).Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestSessionCommitPersists(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	session, err := db.Session(ctx)
	require.NoError(t, err)

	_, err = session.NewInsert().Model(&account{Name: "alice"}).Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Commit())

	assert.Equal(t, 1, countAccounts(t, db))
}

func TestSessionRollbackDiscards(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	session, err := db.Session(ctx)
	require.NoError(t, err)

	_, err = session.NewInsert().Model(&account{Name: "bob"}).Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Rollback())

	assert.Equal(t, 0, countAccounts(t, db))
}

func TestSessionSingleUse(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	session, err := db.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Commit())

	assert.ErrorIs(t, session.Commit(), ErrSessionClosed)
	assert.ErrorIs(t, session.Rollback(), ErrSessionClosed)
	assert.NoError(t, session.Close())
	assert.True(t, session.Closed())
}

func TestSessionCloseRollsBackOpenWork(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	session, err := db.Session(ctx)
	require.NoError(t, err)

	_, err = session.NewInsert().Model(&account{Name: "carol"}).Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	assert.Equal(t, 0, countAccounts(t, db))
}

type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) SetLevel(LogLevel)            {}
func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Error(string, ...interface{}) {}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestSessionCloseReportsRollbackFailure(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	session, err := db.Session(ctx)
	require.NoError(t, err)

	rec := &recordingLogger{}
	session.logger = rec

	// end the transaction behind the session's back
	require.NoError(t, session.tx.Commit())

	err = session.Close()
	assert.ErrorIs(t, err, sql.ErrTxDone)
	assert.NotEmpty(t, rec.warns)
}

func TestSessionGuardExitWithoutCommitRollsBack(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	guard, err := db.Guard()
	require.NoError(t, err)
	require.NoError(t, guard.Enter(ctx))

	_, err = guard.Session().NewInsert().Model(&account{Name: "dave"}).Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, guard.Exit())

	// the record written inside the cycle must be absent
	assert.Equal(t, 0, countAccounts(t, db))
}

func TestSessionGuardExplicitCommit(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	guard, err := db.Guard()
	require.NoError(t, err)
	require.NoError(t, guard.Enter(ctx))

	_, err = guard.Session().NewInsert().Model(&account{Name: "erin"}).Exec(ctx)
	require.NoError(t, err)
	require.NoError(t, guard.Commit())
	require.NoError(t, guard.Exit())

	assert.Equal(t, 1, countAccounts(t, db))
}

func TestSessionGuardSingleUsePerCycle(t *testing.T) {
	db := newTestDatabase(t, SessionParams{})
	ctx := context.Background()

	guard, err := db.Guard()
	require.NoError(t, err)

	// no session attached before Enter
	assert.ErrorIs(t, guard.Commit(), ErrNoSession)
	assert.ErrorIs(t, guard.Rollback(), ErrNoSession)

	require.NoError(t, guard.Enter(ctx))
	assert.ErrorIs(t, guard.Enter(ctx), ErrSessionActive)
	require.NoError(t, guard.Commit())

	// commit cleared the stored reference
	assert.Nil(t, guard.Session())
	assert.ErrorIs(t, guard.Rollback(), ErrNoSession)

	// a fresh cycle works again
	require.NoError(t, guard.Enter(ctx))
	require.NoError(t, guard.Exit())
}

func TestRunInSessionAutoCommit(t *testing.T) {
	db := newTestDatabase(t, SessionParams{AutoCommit: true})
	ctx := context.Background()

	err := db.RunInSession(ctx, func(s *Session) error {
		_, err := s.NewInsert().Model(&account{Name: "frank"}).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countAccounts(t, db))
}

func TestRunInSessionCallerDrivenCommit(t *testing.T) {
	db := newTestDatabase(t, SessionParams{AutoCommit: false})
	ctx := context.Background()

	// uncommitted work is rolled back on the success path
	err := db.RunInSession(ctx, func(s *Session) error {
		_, err := s.NewInsert().Model(&account{Name: "grace"}).Exec(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, countAccounts(t, db))

	// an explicit commit inside fn persists
	err = db.RunInSession(ctx, func(s *Session) error {
		if _, err := s.NewInsert().Model(&account{Name: "heidi"}).Exec(ctx); err != nil {
			return err
		}
		return s.Commit()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countAccounts(t, db))
}

func TestRunInSessionErrorRollsBack(t *testing.T) {
	db := newTestDatabase(t, SessionParams{AutoCommit: true})
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.RunInSession(ctx, func(s *Session) error {
		if _, err := s.NewInsert().Model(&account{Name: "ivan"}).Exec(ctx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countAccounts(t, db))
}

func TestSessionBeforeConnect(t *testing.T) {
	db, err := NewDatabase(&Config{
		URLParams: URLParams{Driver: DriverSQLite, Database: ":memory:"},
	})
	require.NoError(t, err)

	_, err = db.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	err = db.RunInSession(context.Background(), func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)
}
