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
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var sqlHookSilentMode bool

// EnableSqlHookSilent suppresses all custom query hook output, e.g. in tests.
func EnableSqlHookSilent(b bool) {
	sqlHookSilentMode = b
}

// SlowQueryHook warns about statements that exceed SlowTime.
type SlowQueryHook struct {
	SlowTime time.Duration
	Logger   Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if sqlHookSilentMode {
		return
	}
	if event.Err != nil {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.SlowTime && h.Logger != nil {
		h.Logger.Warn(color.New(color.FgYellow).Sprint("Database slow query detected:"),
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.SlowTime,
			"query", formatQueryColor(event),
		)
	}
}

func formatQueryColor(event *bun.QueryEvent) string {
	switch event.Operation() {
	case "SELECT":
		return color.GreenString(event.Query)
	case "INSERT":
		return color.BlueString(event.Query)
	case "UPDATE":
		return color.YellowString(event.Query)
	case "DELETE":
		return color.MagentaString(event.Query)
	default:
		return color.RedString(event.Query)
	}
}
