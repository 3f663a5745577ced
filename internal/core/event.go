package core

import (
	"net"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
)

// EventKind tags the upward event variants the application receives.
type EventKind int

const (
	EventNew EventKind = iota
	EventFileUpload
	EventAck
	EventAckProgress
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventFileUpload:
		return "file_upload"
	case EventAck:
		return "ack"
	case EventAckProgress:
		return "ack_progress"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the tagged union delivered on App.Events(); only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Peer    net.IP
	Payload []byte

	LogicalID   uint64
	Done, Total int

	Err *stealthyerr.StealthyError
}
