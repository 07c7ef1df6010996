// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package answer is the HTTP client for the remote question-answering
// service.
//
// # Endpoints
//
//	POST   {base}/chat            {"session_id","query"} -> {"answer"}
//	DELETE {base}/sessions/{id}   best-effort server-side reset
//
// # Errors
//
//   - *StatusError: the service answered with a non-2xx status
//   - *TransportError: the request never produced a response
//
// Chat has no client-side timeout. Cancel through the context.
package answer
