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
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database composes the bootstrap pipeline: URL parameters build a connection
// URL, the URL builds an engine, and the engine feeds a session factory.
// Construct it once with the settings' parameter groups and hand it by
// reference to the components that need sessions.
type Database struct {
	config  *Config
	engine  *Engine
	factory *SessionFactory
	logger  Logger
}

// NewDatabase builds an unconnected Database from the three parameter groups.
// Sensitive connection values can be overridden from environment variables.
func NewDatabase(cfg *Config) (*Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	overrideFromEnv(&cfg.URLParams, &cfg.EngineParams)
	return &Database{
		config: cfg,
		logger: GetLogger(),
	}, nil
}

// NewDatabaseFromProvider builds a Database from a settings holder.
func NewDatabaseFromProvider(provider ConfigProvider) (*Database, error) {
	if provider == nil {
		return nil, fmt.Errorf("database configuration provider cannot be empty")
	}
	return NewDatabase(provider.ConfigLoader())
}

// Connect runs the bootstrap pipeline and verifies connectivity.
func (d *Database) Connect(ctx context.Context) error {
	if d.engine != nil {
		return d.engine.Connect(ctx)
	}

	url, err := d.connectionURL()
	if err != nil {
		return fmt.Errorf("failed to build connection url: %w", err)
	}

	engine, err := NewEngine(d.config.URLParams.Driver, url, &d.config.EngineParams)
	if err != nil {
		return fmt.Errorf("failed to create database engine: %w", err)
	}
	if err := engine.Connect(ctx); err != nil {
		return err
	}

	d.engine = engine
	d.factory = NewSessionFactory(engine, &d.config.SessionParams)
	d.logger.Info("Database bootstrap completed!")
	return nil
}

// connectionURL renders the URL parameters. For mysql the engine's timeout
// settings are folded into the DSN as driver options; explicitly configured
// options win over engine-derived ones.
func (d *Database) connectionURL() (string, error) {
	params := d.config.URLParams
	if NormalizeDriver(params.Driver) == DriverMySQL {
		opts := make(map[string]string, len(params.Options)+3)
		for k, v := range params.Options {
			opts[k] = v
		}
		engine := d.config.EngineParams
		setTimeoutOption(opts, "timeout", engine.ConnectTimeout)
		setTimeoutOption(opts, "readTimeout", engine.ReadTimeout)
		setTimeoutOption(opts, "writeTimeout", engine.WriteTimeout)
		params.Options = opts
	}
	return BuildURL(&params)
}

func setTimeoutOption(opts map[string]string, key string, value time.Duration) {
	if value <= 0 {
		return
	}
	if _, ok := opts[key]; ok {
		return
	}
	opts[key] = value.String()
}

// Engine returns the engine, or nil before Connect.
func (d *Database) Engine() *Engine { return d.engine }

// Factory returns the session factory, or nil before Connect.
func (d *Database) Factory() *SessionFactory { return d.factory }

// Session begins a fresh unit of work from the bound factory.
func (d *Database) Session(ctx context.Context) (*Session, error) {
	if d.factory == nil {
		return nil, ErrNotConnected
	}
	return d.factory.Session(ctx)
}

// RunInSession acquires a session, runs fn, and guarantees release.
func (d *Database) RunInSession(ctx context.Context, fn func(*Session) error) error {
	if d.factory == nil {
		return ErrNotConnected
	}
	return d.factory.RunInSession(ctx, fn)
}

// Guard returns a session guard bound to the factory.
func (d *Database) Guard() (*SessionGuard, error) {
	if d.factory == nil {
		return nil, ErrNotConnected
	}
	return d.factory.Guard(), nil
}

// HealthCheck reports the engine's health.
func (d *Database) HealthCheck(ctx context.Context) *HealthStatus {
	if d.engine == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "Database not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return d.engine.HealthCheck(ctx)
}

// Stats reports the engine's pool statistics.
func (d *Database) Stats() *DBStats {
	if d.engine == nil {
		return &DBStats{}
	}
	return d.engine.Stats()
}

// SetLogger replaces the logger on the bootstrap and its engine.
func (d *Database) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	d.logger = logger
	if d.engine != nil {
		d.engine.SetLogger(logger)
	}
}

// Close shuts down the engine. Sessions still in flight are invalidated by
// the driver.
func (d *Database) Close() error {
	if d.engine == nil {
		return nil
	}
	return d.engine.Close()
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(url *URLParams, engine *EngineParams) {
	if host := os.Getenv("DB_HOST"); host != "" {
		url.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			url.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		url.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		url.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		url.Database = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		url.SSLMode = sslmode
	}

	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			engine.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			engine.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			engine.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}
	if enableReconnect := os.Getenv("DB_ENABLE_RECONNECT"); enableReconnect != "" {
		engine.EnableReconnect = enableReconnect == "true"
	}
	if reconnectInterval := os.Getenv("DB_RECONNECT_INTERVAL"); reconnectInterval != "" {
		if val, err := strconv.Atoi(reconnectInterval); err == nil {
			engine.ReconnectInterval = time.Duration(val) * time.Second
		}
	}
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		engine.EnableQueryLog = enableQueryLog == "true"
	}
}
