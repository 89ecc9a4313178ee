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
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NormalizeDriver maps driver name aliases onto the canonical names.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return DriverMySQL
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

// BuildURL builds a driver-specific connection string from the parameters.
// Missing required parameters fail here, before any network access.
func BuildURL(params *URLParams) (string, error) {
	if params == nil {
		return "", fmt.Errorf("url parameters cannot be empty")
	}

	switch NormalizeDriver(params.Driver) {
	case DriverMySQL:
		return buildMySQLURL(params)
	case DriverPostgres:
		return buildPostgresURL(params)
	case DriverSQLite:
		return buildSQLiteURL(params)
	case "":
		return "", fmt.Errorf("missing required url parameter: driver")
	default:
		return "", fmt.Errorf("unsupported database driver: %s, supported drivers: [%s %s %s]",
			params.Driver, DriverMySQL, DriverPostgres, DriverSQLite)
	}
}

func buildMySQLURL(params *URLParams) (string, error) {
	if err := requireParams(params, "host", "username", "database"); err != nil {
		return "", err
	}
	port := params.Port
	if port == 0 {
		port = 3306
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		params.Username,
		params.Password,
		params.Host,
		port,
		params.Database,
	)
	if extra := encodeOptions(params.Options); extra != "" {
		dsn += "&" + extra
	}
	return dsn, nil
}

func buildPostgresURL(params *URLParams) (string, error) {
	if err := requireParams(params, "host", "username", "database"); err != nil {
		return "", err
	}
	port := params.Port
	if port == 0 {
		port = 5432
	}
	sslMode := params.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for k, v := range params.Options {
		query.Set(k, v)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(params.Username, params.Password),
		Host:     fmt.Sprintf("%s:%d", params.Host, port),
		Path:     "/" + params.Database,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

func buildSQLiteURL(params *URLParams) (string, error) {
	if params.Database == "" {
		return "", fmt.Errorf("missing required url parameter: database")
	}

	dsn := params.Database
	if dsn == ":memory:" {
		// shared cache keeps the schema visible across pooled connections
		dsn = "file::memory:?cache=shared"
	} else if !strings.HasSuffix(dsn, ".db") {
		dsn += ".db"
	}
	if extra := encodeOptions(params.Options); extra != "" {
		if strings.Contains(dsn, "?") {
			dsn += "&" + extra
		} else {
			dsn += "?" + extra
		}
	}
	return dsn, nil
}

func requireParams(params *URLParams, keys ...string) error {
	var missing []string
	for _, key := range keys {
		switch key {
		case "host":
			if params.Host == "" {
				missing = append(missing, key)
			}
		case "username":
			if params.Username == "" {
				missing = append(missing, key)
			}
		case "database":
			if params.Database == "" {
				missing = append(missing, key)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required url parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

func encodeOptions(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(options[k])))
	}
	return strings.Join(parts, "&")
}
