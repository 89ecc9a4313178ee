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
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlErrorMySQLCodes(t *testing.T) {
	is, kind := IsSqlError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.True(t, is)
	assert.Equal(t, DuplicateKeyErr, kind)

	is, kind = IsSqlError(&mysql.MySQLError{Number: 1048, Message: "Column cannot be null"})
	assert.True(t, is)
	assert.Equal(t, NotNullViolationErr, kind)

	is, kind = IsSqlError(&mysql.MySQLError{Number: 1452, Message: "foreign key constraint fails"})
	assert.True(t, is)
	assert.Equal(t, ForeignKeyViolationErr, kind)
}

func TestIsSqlErrorMessageShapes(t *testing.T) {
	tests := []struct {
		msg  string
		kind SQLError
	}{
		{"ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)", DuplicateKeyErr},
		{"UNIQUE constraint failed: account.name", DuplicateKeyErr},
		{"NOT NULL constraint failed: account.name", NotNullViolationErr},
		{"FOREIGN KEY constraint failed", ForeignKeyViolationErr},
		{"no such table: account", NoTableErr},
		{"no such column: missing", NoColumnErr},
		{"relation \"account\" already exists", ExistTableErr},
	}
	for _, tt := range tests {
		is, kind := IsSqlError(errors.New(tt.msg))
		assert.True(t, is, tt.msg)
		assert.Equal(t, tt.kind, kind, tt.msg)
	}
}

func TestIsSqlErrorUnrelated(t *testing.T) {
	is, kind := IsSqlError(errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	assert.False(t, is)
	assert.Equal(t, UnknownErr, kind)
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotConnected, ErrSessionClosed, ErrNoSession, ErrSessionActive}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
