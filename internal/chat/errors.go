// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQueryLength is the longest accepted query, in runes after trimming.
const MaxQueryLength = 5000

// User-facing messages.
const (
	MsgEmptyQuery       = "Please enter a question."
	MsgInvalidInput     = "Invalid input. Please check your query and try again."
	MsgRequestFailed    = "Request failed. Please check the API server and your network."
	MsgRegenerateFailed = "Failed to regenerate. Please try again."
)

// MsgQueryTooLong is shown for queries over MaxQueryLength.
var MsgQueryTooLong = fmt.Sprintf("Query is too long. Maximum length is %d characters.", MaxQueryLength)

// ErrBusy is returned when a request is already in flight.
var ErrBusy = errors.New("a request is already in progress")

// ValidationError reports a query rejected locally.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any *ValidationError, so errors.Is(err, &ValidationError{})
// works as a kind check.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// failureText maps a failed ask to the line shown to the user. The service
// reports bad input with "validation" somewhere in its error body.
func failureText(err error) string {
	if err != nil && strings.Contains(err.Error(), "validation") {
		return MsgInvalidInput
	}
	return MsgRequestFailed
}
