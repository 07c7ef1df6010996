// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/tlchat/internal/answer"
	"github.com/jeranaias/tlchat/internal/chat"
	"github.com/jeranaias/tlchat/internal/config"
	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/session"
	"github.com/jeranaias/tlchat/internal/storage"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// GlobalFlags are the persistent flags of the root command. Non-empty values
// override the config file and environment.
type GlobalFlags struct {
	ConfigPath string
	APIURL     string
	DataDir    string
	Store      string
	Debug      bool
}

// LoadConfig reads the config file named by --config (or the default path)
// and applies flag overrides.
func (f *GlobalFlags) LoadConfig() (*config.Config, error) {
	path, err := f.configPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if f.APIURL != "" {
		cfg.API.URL = f.APIURL
	}
	if f.DataDir != "" {
		cfg.Storage.DataDir = f.DataDir
	}
	if f.Store != "" {
		cfg.Storage.Backend = strings.ToLower(f.Store)
	}
	if f.Debug {
		cfg.Log.Level = string(logger.LevelDebug)
		cfg.Log.Dev = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}

func (f *GlobalFlags) configPath() (string, error) {
	if f.ConfigPath != "" {
		return f.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// setupLogging points the global logger at w.
func setupLogging(cfg *config.Config, w io.Writer) {
	logger.ConfigureOutput(w, logger.ParseLevel(cfg.Log.Level), cfg.Log.Dev)
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// =============================================================================
// APP
// =============================================================================

// App is the wired object graph shared by the chat commands.
type App struct {
	Config   *config.Config
	Store    storage.Store
	Client   *answer.Client
	Registry *session.Registry
	Engine   *chat.Engine

	logFile *os.File
}

// OpenApp opens the configured store and builds the engine on top of it.
func OpenApp(cfg *config.Config) (*App, error) {
	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	client := answer.NewClient(cfg.API.URL)
	registry := session.NewRegistry(store, client)
	registry.Load()

	logger.Logger.Debug().
		Str("store", cfg.Storage.Backend).
		Str("data_dir", cfg.Storage.DataDir).
		Str("api_url", client.BaseURL()).
		Int("sessions", registry.Len()).
		Msg("APP_OPEN")

	return &App{
		Config:   cfg,
		Store:    store,
		Client:   client,
		Registry: registry,
		Engine:   chat.NewEngine(registry, client),
	}, nil
}

// LogToFile redirects logging to the configured log file so it does not
// interleave with interactive output.
func (a *App) LogToFile() error {
	f, err := openLogFile(a.Config.LogFile())
	if err != nil {
		return err
	}
	a.logFile = f
	setupLogging(a.Config, f)
	return nil
}

// Close finishes any reveal, waits for background resets and closes the
// store.
func (a *App) Close() {
	a.Engine.Close()
	if err := a.Store.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("STORE_CLOSE")
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// ResolveSessionID expands a unique id prefix to a full session id.
func ResolveSessionID(reg *session.Registry, prefix string) (string, error) {
	if prefix == "" {
		return "", &UsageError{Reason: "session id is required"}
	}
	if _, ok := reg.Get(prefix); ok {
		return prefix, nil
	}

	var match string
	for _, s := range reg.List() {
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s: %w", prefix, session.ErrSessionNotFound)
	}
	return match, nil
}
