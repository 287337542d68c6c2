package tsae

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// WireVector is the serializable form of a TimestampVector: participant =>
// last sequence number.
type WireVector map[string]int64

// WireMatrix is the serializable form of a TimestampMatrix: participant =>
// reported vector.
type WireMatrix map[string]WireVector

// ToWire ...
func (tv *TimestampVector) ToWire() WireVector {
	w := make(WireVector, len(tv.timestamps))
	for p, ts := range tv.timestamps {
		w[p] = ts.Seq
	}
	return w
}

// VectorFromWire rebuilds a TimestampVector whose participant set is the set
// of keys in w.
func VectorFromWire(w WireVector) *TimestampVector {
	participants := make([]string, 0, len(w))
	for p := range w {
		participants = append(participants, p)
	}

	tv := NewTimestampVector(participants)
	for p, seq := range w {
		if seq < 0 {
			seq = NullSeq
		}
		tv.UpdateTimestamp(NewTimestamp(p, seq))
	}

	return tv
}

// ToWire ...
func (tm *TimestampMatrix) ToWire() WireMatrix {
	w := make(WireMatrix, len(tm.rows))
	for p, row := range tm.rows {
		w[p] = row.ToWire()
	}
	return w
}

// MatrixFromWire rebuilds a TimestampMatrix whose participant set is the set
// of row keys in w.
func MatrixFromWire(w WireMatrix) *TimestampMatrix {
	participants := make([]string, 0, len(w))
	for p := range w {
		participants = append(participants, p)
	}

	tm := NewTimestampMatrix(participants)
	for p, row := range w {
		tm.rows[p].UpdateMax(VectorFromWire(row))
	}

	return tm
}

// Marshal - json encoding of the wire form of a TimestampVector
func (tv *TimestampVector) Marshal() ([]byte, error) {
	return marshal(tv.ToWire())
}

// UnmarshalVector ...
func UnmarshalVector(data []byte) (*TimestampVector, error) {
	var w WireVector
	if err := unmarshal(data, &w); err != nil {
		return nil, err
	}
	return VectorFromWire(w), nil
}

// Marshal - json encoding of the wire form of a TimestampMatrix
func (tm *TimestampMatrix) Marshal() ([]byte, error) {
	return marshal(tm.ToWire())
}

// UnmarshalMatrix ...
func UnmarshalMatrix(data []byte) (*TimestampMatrix, error) {
	var w WireMatrix
	if err := unmarshal(data, &w); err != nil {
		return nil, err
	}
	return MatrixFromWire(w), nil
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(v)
}
