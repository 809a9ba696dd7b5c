// Copyright 2024-2026 Aiku AI

package bridge

import (
	"errors"

	"github.com/aiku/pipebridge/pkg/bridge/database"
)

// Error kinds surfaced by the relay pipeline. Conversion problems are not
// errors at this level: an unconvertible segment degrades to a placeholder
// inside the converter and the relay continues.
var (
	// ErrDeliveryFailed means the destination platform rejected or could not
	// accept the rendered message. The relay to that destination aborts;
	// other destinations of the same inbound message are unaffected.
	ErrDeliveryFailed = errors.New("message delivery failed")

	// ErrStorageUnavailable means the persistence layer itself is
	// unreachable. Fatal for the current operation; retry policy belongs to
	// the caller.
	ErrStorageUnavailable = database.ErrUnavailable

	// ErrNoMessage means the inbound event carries no message payload.
	ErrNoMessage = errors.New("event has no message payload")
)
