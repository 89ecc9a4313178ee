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
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Engine is a pooled handle managing physical connections to the database.
// It wraps a Bun DB bound to one connection URL and exposes lifecycle,
// health-check, and statistics operations.
type Engine struct {
	driver string
	url    string
	params *EngineParams
	logger Logger

	mu              sync.RWMutex
	db              *bun.DB
	sqlDB           *sql.DB
	connected       bool
	lastError       error
	reconnectTries  int
	stopHealthCheck chan struct{}
}

// NewEngine opens an engine bound to the given connection URL. The URL is not
// dialed here; call Connect to establish and verify connectivity. Invalid
// driver names and malformed URLs fail immediately.
func NewEngine(driver, url string, params *EngineParams) (*Engine, error) {
	if params == nil {
		params = DefaultEngineParams()
	}
	if params.ConnectTimeout <= 0 {
		params.ConnectTimeout = 30 * time.Second
	}

	e := &Engine{
		driver: NormalizeDriver(driver),
		url:    url,
		params: params,
		logger: GetLogger(),
	}

	if err := e.open(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) open() error {
	var sqlDB *sql.DB
	var err error
	var db *bun.DB

	switch e.driver {
	case DriverMySQL:
		sqlDB, err = sql.Open("mysql", e.url)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqlDB, mysqldialect.New())
	case DriverPostgres:
		sqlDB, err = sql.Open("postgres", e.url)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqlDB, pgdialect.New())
	case DriverSQLite:
		sqlDB, err = sql.Open(sqliteshim.ShimName, e.url)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		return fmt.Errorf("unsupported database driver: %s", e.driver)
	}

	if e.params.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if e.params.SlowQueryTime > 0 {
		db.AddQueryHook(&SlowQueryHook{
			SlowTime: e.params.SlowQueryTime,
			Logger:   e.logger,
		})
	}

	e.sqlDB = sqlDB
	e.db = db
	return nil
}

// Connect tunes the connection pool and verifies connectivity with a ping.
// Errors from an unreachable host surface from the driver untranslated.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected && e.db != nil {
		return nil
	}
	if e.db == nil {
		if err := e.open(); err != nil {
			e.lastError = err
			return fmt.Errorf("failed to open database connection: %w", err)
		}
	}

	e.configurePool()

	ctxTimeout, cancel := context.WithTimeout(ctx, e.params.ConnectTimeout)
	defer cancel()

	if err := e.db.PingContext(ctxTimeout); err != nil {
		e.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	e.connected = true
	e.lastError = nil
	e.reconnectTries = 0

	if e.params.HealthCheckInterval > 0 {
		e.startHealthCheck()
	}

	e.logger.Info("Database engine connected:", "driver", e.driver)
	return nil
}

func (e *Engine) configurePool() {
	if e.sqlDB == nil {
		return
	}
	e.sqlDB.SetMaxIdleConns(e.params.MaxIdleConns)
	e.sqlDB.SetMaxOpenConns(e.params.MaxOpenConns)
	e.sqlDB.SetConnMaxLifetime(e.params.ConnMaxLifetime)
	e.sqlDB.SetConnMaxIdleTime(e.params.ConnMaxIdleTime)
}

// Close shuts down the engine and its pool.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopHealthCheck != nil {
		close(e.stopHealthCheck)
		e.stopHealthCheck = nil
	}

	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil
	e.sqlDB = nil
	e.connected = false

	if err != nil {
		e.logger.Error("Failed to close database engine", "error", err)
	} else {
		e.logger.Info("Database engine closed")
	}
	return err
}

// Reconnect tears down the current connection and connects again.
func (e *Engine) Reconnect(ctx context.Context) error {
	e.logger.Info("Attempting to reconnect to the database")

	if err := e.Close(); err != nil {
		e.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return e.Connect(ctx)
}

// Ping verifies the engine can still reach the database.
func (e *Engine) Ping(ctx context.Context) error {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()

	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

// DB returns the Bun database instance, or nil when the engine is closed.
func (e *Engine) DB() *bun.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

// SQLDB returns the underlying database/sql handle.
func (e *Engine) SQLDB() *sql.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sqlDB
}

// Driver returns the canonical driver name the engine was built with.
func (e *Engine) Driver() string { return e.driver }

// URL returns the connection URL the engine is bound to.
func (e *Engine) URL() string { return e.url }

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(logger Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger != nil {
		e.logger = logger
	}
}

// HealthCheck pings the database and reports pool condition.
func (e *Engine) HealthCheck(ctx context.Context) *HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     e.connected,
	}

	if e.db == nil {
		status.Healthy = false
		status.LastError = "Database not initialized"
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	err := e.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)

	if err != nil {
		status.Healthy = false
		status.Connected = false
		status.LastError = err.Error()
		e.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		e.lastError = nil
	}

	if e.sqlDB != nil {
		stats := e.sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}
	return status
}

// Stats reports pool statistics from database/sql.
func (e *Engine) Stats() *DBStats {
	e.mu.RLock()
	sqlDB := e.sqlDB
	e.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}

	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

// startHealthCheck launches the background loop. Caller holds e.mu. Each
// Connect gets its own stop channel so the loop can restart after a
// Close/Reconnect cycle; closing the channel stops the loop even when it is
// mid-iteration.
func (e *Engine) startHealthCheck() {
	if e.stopHealthCheck != nil {
		return
	}
	stop := make(chan struct{})
	e.stopHealthCheck = stop

	go func() {
		ticker := time.NewTicker(e.params.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
				status := e.HealthCheck(ctx)
				cancel()
				if !status.Healthy && e.params.EnableReconnect {
					e.handleReconnect()
				}

			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) handleReconnect() {
	if e.reconnectTries >= e.params.MaxReconnectTries {
		e.logger.Error("Max reconnect attempts reached, stopping", "tries", e.reconnectTries)
		return
	}

	e.reconnectTries++
	e.logger.Info("Starting database reconnect", "try", e.reconnectTries)

	time.Sleep(e.params.ReconnectInterval)

	ctx, cancel := context.WithTimeout(context.Background(), e.params.ConnectTimeout)
	defer cancel()

	if err := e.Reconnect(ctx); err != nil {
		e.logger.Error("Reconnect failed", "error", err, "try", e.reconnectTries)
	} else {
		e.reconnectTries = 0
		e.logger.Info("Reconnect succeeded")
	}
}
