// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tlchat command line with cobra.
//
// # Key Types
//
//   - GlobalFlags: flags shared by every command
//   - App: the wired store, registry, answer client and engine
//   - ChatCLI: liner-backed line editor with persistent history
//
// # Commands Overview
//
//   - tlchat, tlchat tui: full-screen chat (default on a terminal)
//   - tlchat chat: line-oriented chat with slash commands
//   - tlchat sessions list|search|show|rename|delete
//   - tlchat gateway: run the CORS-checking HTTP gateway
//   - tlchat config show|get|set|path|keys
//   - tlchat version
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
package cli
