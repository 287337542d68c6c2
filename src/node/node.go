package node

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/config"
	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/mosaicnetworks/tsae/src/peers"
	"github.com/mosaicnetworks/tsae/src/proxy"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Node defines a TSAE node
type Node struct {
	// The node's state (Gossiping, Suspended, Shutdown) and its goroutine
	// counter
	state.Manager

	conf   *config.Config
	logger *logrus.Entry

	core     *Core
	coreLock sync.Mutex

	peerSelector PeerSelector

	trans net.Transport
	netCh <-chan net.Conn

	proxy    proxy.AppProxy
	submitCh chan proxy.Submission

	scheduler *Scheduler

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	// backgroundDone is closed when doBackgroundWork returns. It stays nil
	// until Run starts the background loop.
	backgroundDone chan struct{}
	runLock        sync.Mutex

	start time.Time

	sessionsOriginated int64
	sessionsServed     int64
	sessionsFailed     int64
	lastSession        int64

	// serializationFailures counts consecutive sessions that failed to decode
	// a peer's messages.
	serializationFailures int64
}

// NewNode is a factory method that returns a Node instance. id is the identity
// of the node in peerSet.
func NewNode(conf *config.Config,
	id string,
	peerSet *peers.PeerSet,
	store tsae.Store,
	trans net.Transport,
	proxy proxy.AppProxy,
) *Node {
	ctx, cancel := context.WithCancel(context.Background())

	logger := conf.Logger().WithField("this_id", id)

	node := &Node{
		conf:         conf,
		logger:       logger,
		core:         NewCore(id, store, proxy, conf.PurgeLog, logger),
		peerSelector: NewRandomPeerSelector(peerSet, id),
		trans:        trans,
		netCh:        trans.Consumer(),
		proxy:        proxy,
		ctx:          ctx,
		cancel:       cancel,
		shutdownCh:   make(chan struct{}),
	}

	node.scheduler = NewScheduler(conf.HeartbeatTimeout, node.heartbeat, clockwork.NewRealClock())

	if proxy != nil {
		node.submitCh = proxy.SubmitCh()
	}

	return node
}

// Init loads the persisted state if bootstrapping is enabled, and puts the
// node in the Gossiping state.
func (n *Node) Init() error {
	if _, ok := n.peerSelector.Peers().ByID[n.core.ID()]; !ok {
		return fmt.Errorf("node %s does not belong to the peer set", n.core.ID())
	}

	if n.conf.Bootstrap {
		n.logger.Debug("Bootstrap")
		n.coreLock.Lock()
		err := n.core.Bootstrap()
		n.coreLock.Unlock()
		if err != nil {
			return err
		}
	}

	n.start = time.Now()
	n.setState(state.Gossiping)

	return nil
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync(gossip bool) {
	n.logger.WithField("gossip", gossip).Debug("runasync")

	go n.Run(gossip)
}

// Run serves inbound sessions and, if gossip is true, originates sessions with
// random partners on every heartbeat. It blocks until the node shuts down.
func (n *Node) Run(gossip bool) {
	n.runLock.Lock()
	if n.GetState() == state.Shutdown || n.backgroundDone != nil {
		n.runLock.Unlock()
		return
	}
	done := make(chan struct{})
	n.backgroundDone = done
	n.runLock.Unlock()

	go n.trans.Listen()

	go n.doBackgroundWork(done)

	if gossip {
		go n.scheduler.Run()
	}

	<-n.shutdownCh
}

func (n *Node) heartbeat() {
	if n.GetState() != state.Gossiping {
		return
	}
	n.SessionWithN(n.ctx, n.conf.NumPartners)
}

func (n *Node) doBackgroundWork(done chan struct{}) {
	defer close(done)

	for {
		select {
		case conn := <-n.netCh:
			// select picks randomly among ready cases, so netCh may win
			// after shutdownCh is closed.
			select {
			case <-n.shutdownCh:
				conn.Close()
				return
			default:
			}
			if n.GetState() != state.Gossiping {
				n.logger.WithField("state", n.GetState()).Debug("Rejecting session")
				conn.Close()
				continue
			}
			if !n.GoFunc(func() { n.servePartner(conn) }) {
				n.logger.WithField("peer", conn.RemoteAddr()).Warn("Too many sessions, rejecting")
				conn.Close()
			}
		case s := <-n.submitCh:
			if _, err := n.SubmitOperation(s.Type, s.Payload); err != nil {
				n.logger.WithError(err).Error("Submitting operation")
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// SessionWithN runs sessions with up to num random partners concurrently and
// waits for all of them. Failures are logged and counted but not returned:
// they only delay convergence until a later session.
func (n *Node) SessionWithN(ctx context.Context, num int) {
	partners := n.peerSelector.RandomPartners(num)
	if len(partners) == 0 {
		return
	}

	var g errgroup.Group
	for _, p := range partners {
		p := p
		g.Go(func() error {
			n.Session(ctx, p)
			return nil
		})
	}
	g.Wait()
}

// SubmitOperation issues a new local operation. It returns the timestamp
// assigned to the operation.
func (n *Node) SubmitOperation(opType tsae.OperationType, payload []byte) (tsae.Timestamp, error) {
	if n.GetState() == state.Shutdown {
		return tsae.Timestamp{}, fmt.Errorf("node is shut down")
	}

	n.coreLock.Lock()
	op, err := n.core.SubmitOperation(opType, payload)
	n.coreLock.Unlock()
	if err != nil {
		return tsae.Timestamp{}, err
	}

	submittedOperations.WithLabelValues(n.core.ID()).Inc()

	n.logger.WithField("op", op.String()).Debug("Submitted operation")

	return op.Timestamp, nil
}

// sessionDone updates the counters after a session, and suspends the node if
// too many consecutive sessions failed to decode their peer's messages.
func (n *Node) sessionDone(role string, sid int64, err error, logger *logrus.Entry) {
	sessionsTotal.WithLabelValues(n.core.ID(), role, sessionResult(err)).Inc()

	logLength.WithLabelValues(n.core.ID()).Set(float64(n.core.Log().Len()))

	if role == "originator" {
		atomic.AddInt64(&n.sessionsOriginated, 1)
	} else {
		atomic.AddInt64(&n.sessionsServed, 1)
	}

	if err == nil {
		atomic.StoreInt64(&n.lastSession, sid)
		atomic.StoreInt64(&n.serializationFailures, 0)
		return
	}

	atomic.AddInt64(&n.sessionsFailed, 1)

	if !common.IsSession(err, common.SerializationFailure) {
		logger.WithError(err).Debug("Session failed")
		return
	}

	failures := atomic.AddInt64(&n.serializationFailures, 1)
	logger.WithError(err).WithField("consecutive", failures).Warn("Session failed to decode")

	limit := int64(n.conf.MaxSerializationFailures)
	if limit > 0 && failures > limit && n.GetState() == state.Gossiping {
		logger.WithField("consecutive", failures).Error("Too many serialization failures, suspending")
		n.setState(state.Suspended)
	}
}

// Resume puts a suspended node back in the Gossiping state.
func (n *Node) Resume() {
	if n.GetState() != state.Suspended {
		return
	}
	atomic.StoreInt64(&n.serializationFailures, 0)
	n.setState(state.Gossiping)
}

func (n *Node) setState(s state.State) {
	n.SetState(s)
	if n.proxy != nil {
		if err := n.proxy.OnStateChanged(s); err != nil {
			n.logger.WithError(err).Error("Notifying state change")
		}
	}
}

// Shutdown stops the node: it stops originating sessions, aborts the sessions
// in progress, closes the transport and the store.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(state.Shutdown)

		n.cancel()
		close(n.shutdownCh)

		// No partner handler may be launched once WaitRoutines starts.
		n.runLock.Lock()
		done := n.backgroundDone
		n.runLock.Unlock()
		if done != nil {
			<-done
		}

		n.scheduler.Stop()

		n.trans.Close()

		n.WaitRoutines()

		n.coreLock.Lock()
		if err := n.core.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
		n.coreLock.Unlock()
	})
}

// GetStats returns information about the node.
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	logLen := n.core.Log().Len()

	s := map[string]string{
		"id":                  n.core.ID(),
		"state":               n.GetState().String(),
		"sessions_originated": strconv.FormatInt(atomic.LoadInt64(&n.sessionsOriginated), 10),
		"sessions_served":     strconv.FormatInt(atomic.LoadInt64(&n.sessionsServed), 10),
		"sessions_failed":     strconv.FormatInt(atomic.LoadInt64(&n.sessionsFailed), 10),
		"last_session":        strconv.FormatInt(atomic.LoadInt64(&n.lastSession), 10),
		"log_length":          strconv.Itoa(logLen),
		"num_peers":           strconv.Itoa(n.peerSelector.Peers().Len()),
		"time_elapsed":        strconv.FormatFloat(timeElapsed.Seconds(), 'f', 2, 64),
	}
	return s
}

// ID returns the identity of the node.
func (n *Node) ID() string {
	return n.core.ID()
}

// GetPeers returns the participants.
func (n *Node) GetPeers() []*peers.Peer {
	return n.peerSelector.Peers().Peers
}

// GetSummary returns a copy of the summary.
func (n *Node) GetSummary() *tsae.TimestampVector {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.core.Summary()
}

// GetAck returns a copy of the ack matrix.
func (n *Node) GetAck() *tsae.TimestampMatrix {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.core.Ack()
}

// GetLog returns a copy of the log.
func (n *Node) GetLog() *tsae.Log {
	return n.core.Log().Clone()
}
