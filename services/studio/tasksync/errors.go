// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasksync

import "errors"

var (
	// ErrInvalidConfig indicates an unusable synchronizer configuration.
	ErrInvalidConfig = errors.New("tasksync: invalid configuration")

	// ErrAlreadySubscribed indicates a second subscription for a task id
	// that already has a live one.
	ErrAlreadySubscribed = errors.New("tasksync: task already subscribed")

	// ErrNotSubscribed indicates an operation against an unknown task id.
	ErrNotSubscribed = errors.New("tasksync: task not subscribed")

	// ErrNotFailed indicates a manual reconnect while the push channel is
	// not in the failed state.
	ErrNotFailed = errors.New("tasksync: push channel is not in the failed state")
)
