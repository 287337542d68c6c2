package net

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/ugorji/go/codec"
)

const (
	bufSize = math.MaxUint16
)

// Conn is one end of a session connection. Send and Receive block until the
// message is written or read, the transport timeout expires, or the
// connection is closed. A Conn must not be used by more than one goroutine
// at a time, except for Close.
type Conn interface {
	Send(msg Message) error
	Receive() (Message, error)
	// RemoteAddr returns the address of the other end.
	RemoteAddr() string
	Close() error
}

// ioRecorder remembers the last error returned by the underlying stream so
// that codec errors caused by the connection can be told apart from payloads
// that do not decode.
type ioRecorder struct {
	sync.Mutex
	r   io.Reader
	w   io.Writer
	err error
}

func (c *ioRecorder) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.record(err)
	return n, err
}

func (c *ioRecorder) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.record(err)
	return n, err
}

func (c *ioRecorder) record(err error) {
	if err == nil {
		return
	}
	c.Lock()
	c.err = err
	c.Unlock()
}

func (c *ioRecorder) lastErr() error {
	c.Lock()
	defer c.Unlock()
	return c.err
}

type netConn struct {
	target  string
	conn    net.Conn
	rec     *ioRecorder
	w       *bufio.Writer
	dec     *codec.Decoder
	enc     *codec.Encoder
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newNetConn(target string, conn net.Conn, timeout time.Duration) *netConn {
	rec := &ioRecorder{r: conn, w: conn}

	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true

	nc := &netConn{
		target:  target,
		conn:    conn,
		rec:     rec,
		w:       bufio.NewWriterSize(rec, bufSize),
		timeout: timeout,
	}
	nc.dec = codec.NewDecoder(bufio.NewReaderSize(rec, bufSize), mh)
	nc.enc = codec.NewEncoder(nc.w, mh)

	return nc
}

// RemoteAddr implements the Conn interface.
func (n *netConn) RemoteAddr() string {
	return n.target
}

// Close implements the Conn interface. It is safe to call more than once.
func (n *netConn) Close() error {
	n.closeOnce.Do(func() {
		n.closeErr = n.conn.Close()
	})
	return n.closeErr
}

// Send implements the Conn interface.
func (n *netConn) Send(msg Message) error {
	if n.timeout > 0 {
		n.conn.SetWriteDeadline(time.Now().Add(n.timeout))
	}

	if err := n.enc.Encode(uint8(msg.Type())); err != nil {
		return n.classify(err)
	}

	if err := n.enc.Encode(msg); err != nil {
		return n.classify(err)
	}

	if err := n.w.Flush(); err != nil {
		return common.NewSessionErr(common.TransportFailure, msg.Session(), err)
	}

	return nil
}

// Receive implements the Conn interface.
func (n *netConn) Receive() (Message, error) {
	if n.timeout > 0 {
		n.conn.SetReadDeadline(time.Now().Add(n.timeout))
	}

	var msgType uint8
	if err := n.dec.Decode(&msgType); err != nil {
		return nil, n.classify(err)
	}

	var msg Message
	switch MsgType(msgType) {
	case MsgAERequest:
		msg = &AERequest{}
	case MsgOperation:
		msg = &OperationMessage{}
	case MsgEndTSAE:
		msg = &EndTSAE{}
	default:
		return nil, common.NewSessionErr(
			common.SerializationFailure,
			0,
			fmt.Errorf("unknown message type %d", msgType),
		)
	}

	if err := n.dec.Decode(msg); err != nil {
		return nil, n.classify(err)
	}

	return msg, nil
}

func (n *netConn) classify(err error) error {
	if ioErr := n.rec.lastErr(); ioErr != nil {
		return common.NewSessionErr(common.TransportFailure, 0, ioErr)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return common.NewSessionErr(common.TransportFailure, 0, err)
	}
	return common.NewSessionErr(common.SerializationFailure, 0, err)
}
