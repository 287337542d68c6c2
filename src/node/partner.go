package node

import (
	"context"
	"fmt"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/sirupsen/logrus"
)

// servePartner runs the partner side of a session on an inbound connection.
// A panic is contained to the session.
func (n *Node) servePartner(conn net.Conn) {
	logger := n.logger.WithFields(logrus.Fields{
		"peer": conn.RemoteAddr(),
		"role": "partner",
	})

	ctx := n.ctx
	if n.conf.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.conf.SessionTimeout)
		defer cancel()
	}

	var sid int64
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = common.NewSessionErr(common.ProtocolViolation, sid, fmt.Errorf("panic: %v", r))
			logger.WithField("session", sid).Errorf("Recovered partner: %v", r)
		}
		conn.Close()
		n.sessionDone("partner", sid, sessionErr(ctx, sid, err), logger.WithField("session", sid))
	}()

	stop := watchContext(ctx, conn)
	defer stop()

	err = n.serve(conn, &sid, logger)
}

// serve stores the id of the session announced by the originator in session
// as soon as it is received. It stays 0 if none was received.
func (n *Node) serve(conn net.Conn, session *int64, logger *logrus.Entry) error {
	// SummaryExchange
	msg, err := conn.Receive()
	if err != nil {
		return err
	}

	*session = msg.Session()

	req, ok := msg.(*net.AERequest)
	if !ok {
		return protocolViolation(msg.Session(), "expected %s, got %s", net.MsgAERequest, msg.Type())
	}

	sid := req.SessionID
	logger = logger.WithField("session", sid)

	origSummary := req.SummaryVector()
	origAck := req.AckMatrix()

	// The operations and the summary that follows them are read together, so
	// the summary never covers operations that were not sent.
	n.coreLock.Lock()
	err = n.core.RecordPeerSummary(req.From, origSummary)
	ops := n.core.ListNewer(origSummary)
	summary, ack := n.core.Snapshot()
	n.coreLock.Unlock()
	if err != nil {
		return protocolViolation(sid, "%v", err)
	}

	if err := sendOperations(conn, sid, ops); err != nil {
		return err
	}
	if err := conn.Send(net.NewAERequest(sid, n.core.ID(), summary, ack)); err != nil {
		return err
	}

	// OperationTransfer inbound
	msg, admitted, err := n.receiveOperations(conn, sid, logger)
	if err != nil {
		return err
	}
	if msg.Type() != net.MsgEndTSAE {
		return protocolViolation(sid, "expected %s, got %s", net.MsgEndTSAE, msg.Type())
	}

	// Finalize
	n.coreLock.Lock()
	err = n.core.Merge(origSummary, origAck)
	n.coreLock.Unlock()
	if err != nil {
		return err
	}

	if err := conn.Send(net.NewEndTSAE(sid)); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"received": admitted,
		"sent":     len(ops),
	}).Debug("Session served")

	return nil
}
