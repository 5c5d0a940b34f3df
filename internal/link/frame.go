// Package link carries remote object updates between the planner and the
// vehicle as JSON frames over a websocket, a serial line or an in-memory
// pipe.
package link

import (
	"context"
	"encoding/json"
	"errors"
)

// FrameType names the purpose of a frame.
type FrameType string

const (
	// FrameUpdate carries new data for one instance.
	FrameUpdate FrameType = "update"
	FrameAck    FrameType = "ack"
	FrameNack   FrameType = "nack"
	// FrameDumpRequest asks for every instance of Object.
	FrameDumpRequest FrameType = "dump_request"
	// FrameDump answers a dump request with Instances in index order.
	FrameDump FrameType = "dump"
)

var (
	ErrClosed       = errors.New("link closed")
	ErrUnknownFrame = errors.New("unknown frame type")
)

// Frame is one message on the link.
type Frame struct {
	Type      FrameType         `json:"type"`
	Object    string            `json:"object,omitempty"`
	Instance  uint16            `json:"instance"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Acked     bool              `json:"acked,omitempty"`
	Success   bool              `json:"success,omitempty"`
	Instances []json.RawMessage `json:"instances,omitempty"`
}

// Conn exchanges frames with the other end. WriteFrame may be called
// concurrently with ReadFrame.
type Conn interface {
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(Frame) error
	Close() error
}
