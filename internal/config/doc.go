// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves tlchat configuration.
//
// # Key Types
//
//   - Config: every setting, grouped by section
//   - APIConfig: where the answer service lives
//   - StorageConfig: which store backend to use and where
//   - LogConfig: log level, console mode and log file
//   - GatewayConfig: the CORS-checking HTTP gateway
//   - UIConfig: terminal front-end preferences
//
// # Configuration Precedence
//
// Highest first:
//   - command-line flags (applied by the caller)
//   - environment variables (TLCHAT_*, plus ALLOWED_ORIGINS,
//     PYTHON_API_URL and NODE_ENV for the gateway)
//   - ~/.tlchat/config.toml
//   - built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.Storage.DataDir)
package config
