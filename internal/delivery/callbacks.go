package delivery

import stealthyerr "github.com/dze-labs/stealthy/internal/errors"

// Callbacks are the upward events Delivery publishes. Each layer owns only
// its downstream handle and a way to publish upward — the application
// (internal/core) wires these into its own event channel rather than
// Delivery holding a reference back up.
type Callbacks struct {
	OnMessage     func(Message)
	OnAck         func(logicalID uint64)
	OnAckProgress func(logicalID uint64, done, total int)
	OnError       func(*stealthyerr.StealthyError)
}
