// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrInvalidAgentName = errors.New("invalid agent name")
var ErrInvalidAgentStatus = errors.New("invalid agent status")
var ErrInvalidSessionTitle = errors.New("invalid session title")
var ErrInvalidTaskTitle = errors.New("invalid task title")
var ErrInvalidTaskStatus = errors.New("invalid task status")
