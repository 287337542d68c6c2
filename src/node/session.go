package node

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
)

// sessionCounter assigns process-wide session ids. Ids are used to correlate
// log entries only.
var sessionCounter int64

func nextSessionID() int64 {
	return atomic.AddInt64(&sessionCounter, 1)
}

// watchContext closes conn when ctx is done, which unblocks any pending Send
// or Receive. The returned function stops the watcher.
func watchContext(ctx context.Context, conn net.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// sessionErr attributes err to a session. Errors that are not SessionErrs
// already are reported as transport failures. An expired or cancelled context
// takes precedence over the error it caused.
func sessionErr(ctx context.Context, sid int64, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return common.NewSessionErr(common.TransportFailure, sid, ctx.Err())
	}
	if se, ok := err.(common.SessionErr); ok {
		return se.WithSession(sid)
	}
	return common.NewSessionErr(common.TransportFailure, sid, err)
}

func protocolViolation(sid int64, format string, args ...interface{}) error {
	return common.NewSessionErr(common.ProtocolViolation, sid, fmt.Errorf(format, args...))
}

// checkSession rejects messages carrying another session's id.
func checkSession(sid int64, msg net.Message) error {
	if msg.Session() != sid {
		return protocolViolation(sid, "%s for session %d", msg.Type(), msg.Session())
	}
	return nil
}

// sendOperations streams ops on conn, one OPERATION message each.
func sendOperations(conn net.Conn, sid int64, ops []tsae.Operation) error {
	for _, op := range ops {
		if err := conn.Send(net.NewOperationMessage(sid, op)); err != nil {
			return err
		}
	}
	return nil
}

// receiveOperations reads OPERATION messages from conn and admits them until
// another message type arrives, which it returns. Operations that break the
// issuance order are dropped.
func (n *Node) receiveOperations(conn net.Conn, sid int64, logger *logrus.Entry) (net.Message, int, error) {
	admitted := 0
	for {
		msg, err := conn.Receive()
		if err != nil {
			return nil, admitted, err
		}
		if err := checkSession(sid, msg); err != nil {
			return nil, admitted, err
		}

		opMsg, ok := msg.(*net.OperationMessage)
		if !ok {
			return msg, admitted, nil
		}

		err = n.addOperation(opMsg.Operation)

		switch {
		case err == nil:
			admitted++
		case tsae.IsOrderingViolation(err):
			logger.WithError(err).Debug("Dropping operation")
			droppedOperations.WithLabelValues(n.core.ID()).Inc()
		case common.IsStore(err, common.UnknownParticipant):
			return nil, admitted, protocolViolation(sid, "operation from unknown participant %s", opMsg.Operation.Origin())
		default:
			return nil, admitted, err
		}
	}
}

// addOperation admits a received operation. The lock is released even if the
// application panics while applying it.
func (n *Node) addOperation(op tsae.Operation) error {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.core.AddOperation(op)
}
