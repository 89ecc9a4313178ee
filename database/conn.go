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

	"github.com/uptrace/bun"
)

var (
	globalDatabase *Database
	DB             *bun.DB
)

// InitDB bootstraps the global database from the provided configuration and
// connects it. One-call setup for applications that want a process-wide
// handle; everything it does is also available on an explicitly owned
// Database value.
func InitDB(cfg *Config) (*bun.DB, error) {
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(context.Background()); err != nil {
		return nil, err
	}
	globalDatabase = db
	DB = db.Engine().DB()
	return DB, nil
}

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	if globalDatabase != nil && globalDatabase.Engine() != nil {
		return globalDatabase.Engine().DB()
	}
	return DB
}

// GetDatabase returns the global database bootstrap.
func GetDatabase() *Database {
	return globalDatabase
}

// GetSessionFactory returns the global session factory, or nil before InitDB.
func GetSessionFactory() *SessionFactory {
	if globalDatabase == nil {
		return nil
	}
	return globalDatabase.Factory()
}

// CloseDB closes the global database connection.
func CloseDB() error {
	if globalDatabase != nil {
		return globalDatabase.Close()
	}
	return nil
}

// GetHealthStatus returns the current global database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if globalDatabase != nil {
		return globalDatabase.HealthCheck(ctx)
	}
	return &HealthStatus{
		Healthy:   false,
		Connected: false,
		LastError: "Database not initialized",
	}
}

// GetDatabaseStats returns global database pool statistics.
func GetDatabaseStats() *DBStats {
	if globalDatabase != nil {
		return globalDatabase.Stats()
	}
	return &DBStats{}
}
