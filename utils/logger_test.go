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

package utils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("nonsense"))
}

func TestNewLoggerIsRegisteredOnce(t *testing.T) {
	a := NewLogger("TEST_ONCE")
	b := NewLogger("TEST_ONCE")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("TEST_ONCE", "debug"))
	assert.Equal(t, logrus.DebugLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("NEVER_REGISTERED", "debug"))
}

func TestNamedLogFormatter(t *testing.T) {
	f := &NamedLogFormatter{LoggerName: "TEST"}
	entry := &logrus.Entry{
		Logger:  NewLogger("TEST_FMT"),
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Data:    logrus.Fields{"b": 2, "a": 1},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "2025-01-02 03:04:05.000")
	assert.Contains(t, s, "INFO")
	assert.Contains(t, s, "TEST")
	assert.Contains(t, s, "hello")
	// fields render sorted by key
	assert.Contains(t, s, "a=1 b=2")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("SETHUB_TEST_STR", "value")
	assert.Equal(t, "value", EnvDefaultString("SETHUB_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefaultString("SETHUB_TEST_STR_MISSING", "def"))

	t.Setenv("SETHUB_TEST_BOOL", "true")
	assert.True(t, EnvDefaultBool("SETHUB_TEST_BOOL", false))
	t.Setenv("SETHUB_TEST_BOOL", "not-a-bool")
	assert.False(t, EnvDefaultBool("SETHUB_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("SETHUB_TEST_BOOL_MISSING", true))
}
