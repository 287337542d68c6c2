package tsae

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// OperationType ...
type OperationType uint8

const (
	// AddOperation creates an item in the application state.
	AddOperation OperationType = iota
	// RemoveOperation deletes an item from the application state.
	RemoveOperation
)

// String ...
func (t OperationType) String() string {
	switch t {
	case AddOperation:
		return "add"
	case RemoveOperation:
		return "remove"
	default:
		return "unknown"
	}
}

// ParseOperationType is the inverse of OperationType.String.
func ParseOperationType(s string) (OperationType, error) {
	switch s {
	case "add":
		return AddOperation, nil
	case "remove":
		return RemoveOperation, nil
	default:
		return 0, fmt.Errorf("unknown operation type %q", s)
	}
}

// Operation is an immutable update issued by a participant. Payload is opaque
// to the replication layer and interpreted by the application.
type Operation struct {
	Timestamp Timestamp
	Type      OperationType
	Payload   []byte
}

// NewOperation ...
func NewOperation(ts Timestamp, opType OperationType, payload []byte) Operation {
	return Operation{
		Timestamp: ts,
		Type:      opType,
		Payload:   payload,
	}
}

// Origin ...
func (o Operation) Origin() string {
	return o.Timestamp.Origin
}

// Seq ...
func (o Operation) Seq() int64 {
	return o.Timestamp.Seq
}

// String ...
func (o Operation) String() string {
	return fmt.Sprintf("%s(%s, %d bytes)", o.Type, o.Timestamp, len(o.Payload))
}

// Marshal - json encoding of Operation
func (o *Operation) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(o); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (o *Operation) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(o)
}
