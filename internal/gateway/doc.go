// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is a small HTTP front door for the answer service.
//
// It gives browser clients a same-shaped API with cross-origin checks and
// forwards each call to the upstream answer service unchanged.
//
// Endpoints:
//   - POST   /api/chat            - forwarded to {upstream}/chat
//   - DELETE /api/sessions/{id}   - forwarded to {upstream}/sessions/{id}
//   - GET    /api/health          - liveness probe
//   - OPTIONS on any route        - CORS preflight, always 200
//
// Upstream failures of any kind are reported as HTTP 500 with a fixed
// {"error": "..."} body. Production mode logs only a sanitized line.
package gateway
