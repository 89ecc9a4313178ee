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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineUnsupportedDriver(t *testing.T) {
	_, err := NewEngine("oracle", "whatever", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "engine.db")

	engine, err := NewEngine(DriverSQLite, dsn, &EngineParams{MaxIdleConns: 1, MaxOpenConns: 2})
	require.NoError(t, err)

	require.NoError(t, engine.Connect(ctx))
	assert.Equal(t, DriverSQLite, engine.Driver())
	assert.Equal(t, dsn, engine.URL())
	require.NotNil(t, engine.DB())
	require.NotNil(t, engine.SQLDB())
	assert.NoError(t, engine.Ping(ctx))

	// Connect is idempotent once established
	assert.NoError(t, engine.Connect(ctx))

	status := engine.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Empty(t, status.LastError)

	stats := engine.Stats()
	assert.Equal(t, 2, stats.MaxOpenConns)

	require.NoError(t, engine.Close())
	assert.Nil(t, engine.DB())
	assert.ErrorIs(t, engine.Ping(ctx), ErrNotConnected)

	status = engine.HealthCheck(ctx)
	assert.False(t, status.Healthy)

	// closing twice is harmless
	assert.NoError(t, engine.Close())
}

func TestEngineReconnectAfterClose(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "reconnect.db")

	engine, err := NewEngine(DriverSQLite, dsn, &EngineParams{MaxIdleConns: 1, MaxOpenConns: 2})
	require.NoError(t, err)
	require.NoError(t, engine.Connect(ctx))
	require.NoError(t, engine.Close())

	require.NoError(t, engine.Reconnect(ctx))
	assert.NoError(t, engine.Ping(ctx))
	require.NoError(t, engine.Close())
}

func TestEngineHealthLoopRestartsAfterReconnect(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "health.db")

	engine, err := NewEngine(DriverSQLite, dsn, &EngineParams{
		MaxIdleConns:        1,
		MaxOpenConns:        2,
		HealthCheckInterval: time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, engine.Connect(ctx))
	assert.NotNil(t, engine.stopHealthCheck)

	require.NoError(t, engine.Close())
	assert.Nil(t, engine.stopHealthCheck)

	// a fresh loop starts on reconnect
	require.NoError(t, engine.Reconnect(ctx))
	assert.NotNil(t, engine.stopHealthCheck)
	require.NoError(t, engine.Close())
}

func TestMySQLConnectionURLCarriesEngineTimeouts(t *testing.T) {
	db, err := NewDatabase(&Config{
		URLParams: URLParams{Driver: DriverMySQL, Host: "127.0.0.1", Username: "root", Database: "app"},
		EngineParams: EngineParams{
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   time.Minute,
		},
	})
	require.NoError(t, err)

	dsn, err := db.connectionURL()
	require.NoError(t, err)
	assert.Contains(t, dsn, "timeout=5s")
	assert.Contains(t, dsn, "readTimeout=30s")
	assert.Contains(t, dsn, "writeTimeout=1m0s")

	// explicitly configured options win over engine-derived ones
	db, err = NewDatabase(&Config{
		URLParams: URLParams{
			Driver: DriverMySQL, Host: "127.0.0.1", Username: "root", Database: "app",
			Options: map[string]string{"readTimeout": "2s"},
		},
		EngineParams: EngineParams{ReadTimeout: 30 * time.Second},
	})
	require.NoError(t, err)

	dsn, err = db.connectionURL()
	require.NoError(t, err)
	assert.Contains(t, dsn, "readTimeout=2s")
	assert.NotContains(t, dsn, "readTimeout=30s")

	// non-mysql URLs are untouched
	db, err = NewDatabase(&Config{
		URLParams:    URLParams{Driver: DriverSQLite, Database: ":memory:"},
		EngineParams: EngineParams{ReadTimeout: 30 * time.Second},
	})
	require.NoError(t, err)

	dsn, err = db.connectionURL()
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?cache=shared", dsn)
}

func TestNewDatabaseEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PASSWORD", "env-pass")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("DB_ENABLE_RECONNECT", "true")

	db, err := NewDatabase(&Config{
		URLParams: URLParams{
			Driver:   DriverPostgres,
			Host:     "cfg-host",
			Port:     5432,
			Username: "u",
			Password: "cfg-pass",
			Database: "d",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "env-host", db.config.URLParams.Host)
	assert.Equal(t, "env-pass", db.config.URLParams.Password)
	// a malformed port value leaves the configured port untouched
	assert.Equal(t, 5432, db.config.URLParams.Port)
	assert.True(t, db.config.EngineParams.EnableReconnect)
}

func TestDatabaseConnectFailsOnBadURLBeforeDialing(t *testing.T) {
	db, err := NewDatabase(&Config{
		URLParams: URLParams{Driver: DriverPostgres, Username: "u", Database: "d"}, // host missing
	})
	require.NoError(t, err)

	err = db.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build connection url")
}

func TestDatabaseHealthBeforeConnect(t *testing.T) {
	db, err := NewDatabase(&Config{
		URLParams: URLParams{Driver: DriverSQLite, Database: ":memory:"},
	})
	require.NoError(t, err)

	status := db.HealthCheck(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "Database not initialized", status.LastError)
	assert.Equal(t, &DBStats{}, db.Stats())
	assert.NoError(t, db.Close())
}

func TestNewDatabaseNilConfig(t *testing.T) {
	_, err := NewDatabase(nil)
	assert.Error(t, err)

	_, err = NewDatabaseFromProvider(nil)
	assert.Error(t, err)
}
