package node

import (
	"context"

	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/mosaicnetworks/tsae/src/peers"
	"github.com/sirupsen/logrus"
)

// Session runs the originator side of a session with peer. It returns a
// common.SessionErr describing why the session failed. Operations admitted
// before a failure are kept.
func (n *Node) Session(ctx context.Context, peer *peers.Peer) error {
	sid := nextSessionID()

	logger := n.logger.WithFields(logrus.Fields{
		"session": sid,
		"peer":    peer.NetAddr,
		"role":    "originator",
	})

	if n.conf.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.conf.SessionTimeout)
		defer cancel()
	}

	err := n.originate(ctx, sid, peer, logger)
	err = sessionErr(ctx, sid, err)

	n.sessionDone("originator", sid, err, logger)

	return err
}

func (n *Node) originate(ctx context.Context, sid int64, peer *peers.Peer, logger *logrus.Entry) error {
	conn, err := n.trans.Dial(peer.NetAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := watchContext(ctx, conn)
	defer stop()

	// SummaryExchange
	n.coreLock.Lock()
	summary, ack := n.core.Snapshot()
	n.coreLock.Unlock()

	if err := conn.Send(net.NewAERequest(sid, n.core.ID(), summary, ack)); err != nil {
		return err
	}

	// OperationTransfer inbound
	msg, admitted, err := n.receiveOperations(conn, sid, logger)
	if err != nil {
		return err
	}

	// ReciprocalSummary
	req, ok := msg.(*net.AERequest)
	if !ok {
		return protocolViolation(sid, "expected %s, got %s", net.MsgAERequest, msg.Type())
	}

	peerSummary := req.SummaryVector()
	peerAck := req.AckMatrix()

	n.coreLock.Lock()
	err = n.core.RecordPeerSummary(req.From, peerSummary)
	ops := n.core.ListNewer(peerSummary)
	n.coreLock.Unlock()
	if err != nil {
		return protocolViolation(sid, "%v", err)
	}

	if err := sendOperations(conn, sid, ops); err != nil {
		return err
	}
	if err := conn.Send(net.NewEndTSAE(sid)); err != nil {
		return err
	}

	// Finalize on the partner's echo
	msg, err = conn.Receive()
	if err != nil {
		return err
	}
	if err := checkSession(sid, msg); err != nil {
		return err
	}
	if msg.Type() != net.MsgEndTSAE {
		return protocolViolation(sid, "expected %s, got %s", net.MsgEndTSAE, msg.Type())
	}

	n.coreLock.Lock()
	err = n.core.Merge(peerSummary, peerAck)
	n.coreLock.Unlock()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"received": admitted,
		"sent":     len(ops),
	}).Debug("Session finished")

	return nil
}
