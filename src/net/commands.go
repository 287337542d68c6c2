package net

import (
	"fmt"

	"github.com/mosaicnetworks/tsae/src/tsae"
)

// MsgType identifies the body that follows in a framed message.
type MsgType uint8

const (
	// MsgAERequest carries the sender's summary and ack.
	MsgAERequest MsgType = iota
	// MsgOperation carries one operation.
	MsgOperation
	// MsgEndTSAE closes the operation stream of a session.
	MsgEndTSAE
)

// String ...
func (t MsgType) String() string {
	switch t {
	case MsgAERequest:
		return "AE_REQUEST"
	case MsgOperation:
		return "OPERATION"
	case MsgEndTSAE:
		return "END_TSAE"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// Message is implemented by all the messages of the session protocol.
type Message interface {
	Type() MsgType
	Session() int64
}

// AERequest is sent once by each side of a session. From is the node id of
// the sender.
type AERequest struct {
	SessionID int64
	From      string
	Summary   tsae.WireVector
	Ack       tsae.WireMatrix
}

// NewAERequest builds an AERequest from snapshots of the sender's state. The
// snapshots are serialized on send and must not be modified concurrently.
func NewAERequest(session int64, from string, summary *tsae.TimestampVector, ack *tsae.TimestampMatrix) *AERequest {
	return &AERequest{
		SessionID: session,
		From:      from,
		Summary:   summary.ToWire(),
		Ack:       ack.ToWire(),
	}
}

// Type implements the Message interface.
func (r *AERequest) Type() MsgType { return MsgAERequest }

// Session implements the Message interface.
func (r *AERequest) Session() int64 { return r.SessionID }

// SummaryVector ...
func (r *AERequest) SummaryVector() *tsae.TimestampVector {
	return tsae.VectorFromWire(r.Summary)
}

// AckMatrix ...
func (r *AERequest) AckMatrix() *tsae.TimestampMatrix {
	return tsae.MatrixFromWire(r.Ack)
}

// OperationMessage carries one operation of a Log.
type OperationMessage struct {
	SessionID int64
	Operation tsae.Operation
}

// NewOperationMessage ...
func NewOperationMessage(session int64, op tsae.Operation) *OperationMessage {
	return &OperationMessage{
		SessionID: session,
		Operation: op,
	}
}

// Type implements the Message interface.
func (m *OperationMessage) Type() MsgType { return MsgOperation }

// Session implements the Message interface.
func (m *OperationMessage) Session() int64 { return m.SessionID }

// EndTSAE ...
type EndTSAE struct {
	SessionID int64
}

// NewEndTSAE ...
func NewEndTSAE(session int64) *EndTSAE {
	return &EndTSAE{
		SessionID: session,
	}
}

// Type implements the Message interface.
func (m *EndTSAE) Type() MsgType { return MsgEndTSAE }

// Session implements the Message interface.
func (m *EndTSAE) Session() int64 { return m.SessionID }
