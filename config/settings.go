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

// Package config holds the application settings: project paths resolved once
// at startup and the database parameter groups handed to the bootstrap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sethub-io/sethub/database"
)

// Default folder names, relative to the project root.
const (
	DefaultAppFolder       = "app"
	DefaultMediaFolder     = "media"
	DefaultStaticFolder    = "frontend/static"
	DefaultTemplatesFolder = "frontend/templates"
)

// Settings is the process configuration. All paths are resolved to absolute
// form at construction time and the value is read-only afterwards; pass it
// explicitly to the components that need it rather than through package state.
type Settings struct {
	ProjectName string

	// MainPath is the project root all other paths are resolved against.
	MainPath      string
	AppPath       string
	MediaPath     string
	StaticPath    string
	TemplatesPath string

	Database DatabaseSettings
}

// DatabaseSettings is the flat, file-friendly form of the database parameter
// groups. ConfigLoader converts it into the bootstrap configuration.
type DatabaseSettings struct {
	Driver   string            `yaml:"driver"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	SSLMode  string            `yaml:"sslmode"`
	Options  map[string]string `yaml:"options"`

	MaxIdleConns           int  `yaml:"max_idle_conns"`
	MaxOpenConns           int  `yaml:"max_open_conns"`
	ConnMaxLifetimeSeconds int  `yaml:"conn_max_lifetime_seconds"`
	ConnectTimeoutSeconds  int  `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds     int  `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int  `yaml:"write_timeout_seconds"`
	EnableQueryLog         bool `yaml:"enable_query_log"`

	AutoCommit bool   `yaml:"auto_commit"`
	ReadOnly   bool   `yaml:"read_only"`
	Isolation  string `yaml:"isolation"`
}

// settingsFile mirrors the YAML layout of the settings file.
type settingsFile struct {
	ProjectName string `yaml:"project_name"`
	Root        string `yaml:"root"`
	Paths       struct {
		App       string `yaml:"app"`
		Media     string `yaml:"media"`
		Static    string `yaml:"static"`
		Templates string `yaml:"templates"`
	} `yaml:"paths"`
	Database DatabaseSettings `yaml:"database"`
}

// NewSettings resolves the default settings against the given project root.
// The root must exist and be a directory.
func NewSettings(root string) (*Settings, error) {
	return newSettings(root, "Sethub", DefaultAppFolder, DefaultMediaFolder, DefaultStaticFolder, DefaultTemplatesFolder, DatabaseSettings{})
}

// LoadSettings reads a YAML settings file, loads an optional .env file from
// the project root, and resolves all paths. The project root defaults to the
// directory containing the settings file unless the file names one.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	root := file.Root
	if root == "" {
		root = filepath.Dir(path)
	}

	// optional .env next to the project root; absence is not an error
	_ = godotenv.Load(filepath.Join(root, ".env"))

	name := file.ProjectName
	if name == "" {
		name = "Sethub"
	}
	app := file.Paths.App
	if app == "" {
		app = DefaultAppFolder
	}
	media := file.Paths.Media
	if media == "" {
		media = DefaultMediaFolder
	}
	static := file.Paths.Static
	if static == "" {
		static = DefaultStaticFolder
	}
	templates := file.Paths.Templates
	if templates == "" {
		templates = DefaultTemplatesFolder
	}

	return newSettings(root, name, app, media, static, templates, file.Database)
}

func newSettings(root, name, app, media, static, templates string, db DatabaseSettings) (*Settings, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid project root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid project root %s: not a directory", absRoot)
	}

	return &Settings{
		ProjectName:   name,
		MainPath:      absRoot,
		AppPath:       filepath.Join(absRoot, filepath.FromSlash(app)),
		MediaPath:     filepath.Join(absRoot, filepath.FromSlash(media)),
		StaticPath:    filepath.Join(absRoot, filepath.FromSlash(static)),
		TemplatesPath: filepath.Join(absRoot, filepath.FromSlash(templates)),
		Database:      db,
	}, nil
}

// ConfigLoader converts the settings into the database bootstrap
// configuration, implementing database.ConfigProvider.
func (s *Settings) ConfigLoader() *database.Config {
	engine := *database.DefaultEngineParams()
	if s.Database.MaxIdleConns > 0 {
		engine.MaxIdleConns = s.Database.MaxIdleConns
	}
	if s.Database.MaxOpenConns > 0 {
		engine.MaxOpenConns = s.Database.MaxOpenConns
	}
	if s.Database.ConnMaxLifetimeSeconds > 0 {
		engine.ConnMaxLifetime = time.Duration(s.Database.ConnMaxLifetimeSeconds) * time.Second
	}
	if s.Database.ConnectTimeoutSeconds > 0 {
		engine.ConnectTimeout = time.Duration(s.Database.ConnectTimeoutSeconds) * time.Second
	}
	if s.Database.ReadTimeoutSeconds > 0 {
		engine.ReadTimeout = time.Duration(s.Database.ReadTimeoutSeconds) * time.Second
	}
	if s.Database.WriteTimeoutSeconds > 0 {
		engine.WriteTimeout = time.Duration(s.Database.WriteTimeoutSeconds) * time.Second
	}
	engine.EnableQueryLog = s.Database.EnableQueryLog

	return &database.Config{
		URLParams: database.URLParams{
			Driver:   s.Database.Driver,
			Host:     s.Database.Host,
			Port:     s.Database.Port,
			Username: s.Database.Username,
			Password: s.Database.Password,
			Database: s.Database.Database,
			SSLMode:  s.Database.SSLMode,
			Options:  s.Database.Options,
		},
		EngineParams: engine,
		SessionParams: database.SessionParams{
			AutoCommit: s.Database.AutoCommit,
			ReadOnly:   s.Database.ReadOnly,
			Isolation:  s.Database.Isolation,
		},
	}
}
