package node

import (
	"fmt"

	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/proxy"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
)

// Core is the core Node object. It owns the replicated state of a node and is
// NOT thread-safe; the Node serializes access to it with a lock.
type Core struct {
	// id is the identity of this node in the participant set.
	id string

	participants []string

	// summary holds, for every participant, the last operation admitted
	// locally.
	summary *tsae.TimestampVector

	// ack holds the last summary reported by every participant. The row of
	// this node is kept equal to summary.
	ack *tsae.TimestampMatrix

	log   *tsae.Log
	store tsae.Store

	proxy proxy.AppProxy

	// purge enables discarding acknowledged operations after every session.
	purge bool

	logger *logrus.Entry
}

// NewCore is a factory method that returns a Core with null vectors and an
// empty log. The participant set is the one the store was created with.
func NewCore(id string,
	store tsae.Store,
	proxy proxy.AppProxy,
	purge bool,
	logger *logrus.Entry) *Core {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	participants := store.Participants()

	return &Core{
		id:           id,
		participants: participants,
		summary:      tsae.NewTimestampVector(participants),
		ack:          tsae.NewTimestampMatrix(participants),
		log:          tsae.NewLog(participants),
		store:        store,
		proxy:        proxy,
		purge:        purge,
		logger:       logger.WithField("this_id", id),
	}
}

// ID returns the identity of this node.
func (c *Core) ID() string {
	return c.id
}

// Participants returns the sorted participant set.
func (c *Core) Participants() []string {
	return c.participants
}

// Log returns the underlying Log.
func (c *Core) Log() *tsae.Log {
	return c.log
}

// Summary returns a copy of the summary.
func (c *Core) Summary() *tsae.TimestampVector {
	return c.summary.Clone()
}

// Ack returns a copy of the ack matrix.
func (c *Core) Ack() *tsae.TimestampMatrix {
	return c.ack.Clone()
}

// Bootstrap loads the state persisted in the store: summary, ack, purge floor
// and unpurged operations. The operations are replayed to the application in
// sequence order.
func (c *Core) Bootstrap() error {
	summary, err := c.store.GetSummary()
	if err != nil && !common.IsStore(err, common.KeyNotFound) {
		return err
	}
	if summary != nil {
		c.summary.UpdateMax(summary)
	}

	ack, err := c.store.GetAck()
	if err != nil && !common.IsStore(err, common.KeyNotFound) {
		return err
	}
	if ack != nil {
		c.ack.UpdateMax(ack)
	}

	floor, err := c.store.GetFloor()
	if err != nil && !common.IsStore(err, common.KeyNotFound) {
		return err
	}

	ops := []tsae.Operation{}
	for _, p := range c.participants {
		pOps, err := c.store.ParticipantOperations(p)
		if err != nil {
			return err
		}
		ops = append(ops, pOps...)
	}

	if err := c.log.Restore(floor, ops); err != nil {
		return fmt.Errorf("restoring log: %v", err)
	}

	for _, p := range c.participants {
		c.summary.UpdateMax(vectorOf(c.participants, c.log.Last(p)))
	}
	c.ack.Update(c.id, c.summary)

	for _, op := range ops {
		c.applyToProxy(op)
	}

	c.logger.WithFields(logrus.Fields{
		"summary": c.summary.String(),
		"log_len": c.log.Len(),
	}).Debug("Bootstrap")

	return nil
}

// SubmitOperation creates a new operation issued by this node, with the
// sequence number following the last one it issued, and admits it.
func (c *Core) SubmitOperation(opType tsae.OperationType, payload []byte) (tsae.Operation, error) {
	ts := c.summary.GetLast(c.id).Next()

	op := tsae.NewOperation(ts, opType, payload)

	if err := c.AddOperation(op); err != nil {
		return tsae.Operation{}, err
	}

	return op, nil
}

// AddOperation admits an operation to the Log, records it in the summary,
// persists it and forwards it to the application. Ordering violations are
// returned unchanged so callers can recognise them with
// tsae.IsOrderingViolation.
func (c *Core) AddOperation(op tsae.Operation) error {
	if err := c.log.Add(op); err != nil {
		return err
	}

	c.summary.UpdateTimestamp(op.Timestamp)

	if err := c.store.SetOperation(op); err != nil {
		return err
	}

	c.applyToProxy(op)

	return nil
}

// applyToProxy forwards an admitted operation to the application. The
// operation stays in the Log even if the application rejects it.
func (c *Core) applyToProxy(op tsae.Operation) {
	if c.proxy == nil {
		return
	}

	var err error
	switch op.Type {
	case tsae.AddOperation:
		err = c.proxy.ApplyCreated(op.Payload)
	case tsae.RemoveOperation:
		err = c.proxy.ApplyRemoved(op.Payload)
	}

	if err != nil {
		c.logger.WithError(err).WithField("op", op.String()).Error("Applying operation")
	}
}

// Snapshot returns copies of the summary and ack to be sent to a peer. The row
// of this node in the ack is refreshed first.
func (c *Core) Snapshot() (*tsae.TimestampVector, *tsae.TimestampMatrix) {
	c.ack.Update(c.id, c.summary)
	return c.summary.Clone(), c.ack.Clone()
}

// ListNewer returns the operations that a peer with the given summary is
// missing.
func (c *Core) ListNewer(summary *tsae.TimestampVector) []tsae.Operation {
	return c.log.ListNewer(summary)
}

// RecordPeerSummary folds the summary reported by peer into its row of the
// ack matrix. The row never regresses.
func (c *Core) RecordPeerSummary(peer string, summary *tsae.TimestampVector) error {
	row := c.ack.GetTimestampVector(peer)
	if row == nil {
		return common.NewStoreErr("Ack", common.UnknownParticipant, peer)
	}

	row = row.Clone()
	row.UpdateMax(summary)

	return c.ack.Update(peer, row)
}

// Merge folds the state of a peer into the local state at the end of a
// session, persists it, and purges the operations acknowledged by everyone if
// purging is enabled.
func (c *Core) Merge(peerSummary *tsae.TimestampVector, peerAck *tsae.TimestampMatrix) error {
	c.summary.UpdateMax(peerSummary)
	c.ack.UpdateMax(peerAck)
	c.ack.Update(c.id, c.summary)

	if err := c.store.SetSummary(c.summary); err != nil {
		return err
	}
	if err := c.store.SetAck(c.ack); err != nil {
		return err
	}

	if c.purge {
		frontier := c.log.PurgeLog(c.ack)
		if err := c.store.Purge(frontier); err != nil {
			return err
		}
	}

	return nil
}

func vectorOf(participants []string, ts tsae.Timestamp) *tsae.TimestampVector {
	v := tsae.NewTimestampVector(participants)
	v.UpdateTimestamp(ts)
	return v
}
