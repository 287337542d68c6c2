package node

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mosaicnetworks/tsae/src/common"
	"github.com/mosaicnetworks/tsae/src/config"
	"github.com/mosaicnetworks/tsae/src/dummy"
	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/mosaicnetworks/tsae/src/peers"
	"github.com/mosaicnetworks/tsae/src/proxy"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const testTimeout = time.Second

func initTransports(n int) ([]*net.InmemTransport, *peers.PeerSet) {
	transports := make([]*net.InmemTransport, n)
	pirs := make([]*peers.Peer, n)

	for i := 0; i < n; i++ {
		addr, trans := net.NewInmemTransport("", testTimeout)
		transports[i] = trans
		pirs[i] = peers.NewPeer(fmt.Sprintf("node%d", i), addr, fmt.Sprintf("moniker%d", i))
	}

	for _, t1 := range transports {
		for _, t2 := range transports {
			if t1 != t2 {
				t1.Connect(t2.LocalAddr(), t2)
			}
		}
	}

	return transports, peers.NewPeerSet(pirs)
}

func newTestConfig(t *testing.T) *config.Config {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.HeartbeatTimeout = 10 * time.Millisecond
	conf.TCPTimeout = testTimeout
	conf.SessionTimeout = 5 * testTimeout
	conf.PurgeLog = false
	return conf
}

func initNodes(t *testing.T, n int, conf *config.Config, proxies func(int) proxy.AppProxy) []*Node {
	transports, peerSet := initTransports(n)

	nodes := make([]*Node, n)
	for i := 0; i < n; i++ {
		var p proxy.AppProxy
		if proxies != nil {
			p = proxies(i)
		}

		node := NewNode(conf,
			peerSet.Peers[i].ID,
			peerSet,
			tsae.NewInmemStore(peerSet.IDs()),
			transports[i],
			p,
		)
		if err := node.Init(); err != nil {
			t.Fatal(err)
		}
		nodes[i] = node
	}

	return nodes
}

func runNodes(nodes []*Node, gossip bool) {
	for _, n := range nodes {
		n.RunAsync(gossip)
	}
}

func shutdownNodes(nodes []*Node) {
	for _, n := range nodes {
		n.Shutdown()
	}
}

func peerOf(n *Node) *peers.Peer {
	return n.peerSelector.Peers().ByID[n.ID()]
}

// waitFor polls cond until it is true or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)
	runNodes(nodes, false)

	a, b := nodes[0], nodes[1]

	ts, err := a.SubmitOperation(tsae.AddOperation, []byte("a0"))
	if err != nil {
		t.Fatal(err)
	}
	if ts != tsae.NewTimestamp(a.ID(), 0) {
		t.Fatalf("first operation should be %s:0, not %s", a.ID(), ts)
	}

	if err := a.Session(context.Background(), peerOf(b)); err != nil {
		t.Fatal(err)
	}

	ops := b.GetLog().Operations(a.ID())
	if len(ops) != 1 || string(ops[0].Payload) != "a0" {
		t.Fatalf("b should hold a's operation, got %v", ops)
	}
	if seq := b.GetSummary().GetLast(a.ID()).Seq; seq != 0 {
		t.Fatalf("b's summary should have %s:0, not %d", a.ID(), seq)
	}

	// b reported its summary before receiving a's operation
	expectedRow := tsae.NewTimestampVector(b.core.Participants())
	row := a.GetAck().GetTimestampVector(b.ID())
	if !row.Equal(expectedRow) {
		t.Fatal(cmp.Diff(expectedRow.ToWire(), row.ToWire()))
	}

	// stability
	aLog, bLog := a.GetLog(), b.GetLog()
	aSummary, bSummary := a.GetSummary(), b.GetSummary()

	if err := a.Session(context.Background(), peerOf(b)); err != nil {
		t.Fatal(err)
	}

	if !a.GetLog().Equal(aLog) || !b.GetLog().Equal(bLog) {
		t.Fatal("a session without new operations should not change the logs")
	}
	if !a.GetSummary().Equal(aSummary) || !b.GetSummary().Equal(bSummary) {
		t.Fatal("a session without new operations should not change the summaries")
	}

	// b now reports a:0
	if seq := a.GetAck().GetTimestampVector(b.ID()).GetLast(a.ID()).Seq; seq != 0 {
		t.Fatalf("a's row for b should have %s:0, not %d", a.ID(), seq)
	}
}

func TestSessionBothWays(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)
	runNodes(nodes, false)

	a, b := nodes[0], nodes[1]

	for i := 0; i < 5; i++ {
		if _, err := a.SubmitOperation(tsae.AddOperation, []byte(fmt.Sprintf("a%d", i))); err != nil {
			t.Fatal(err)
		}
		if _, err := b.SubmitOperation(tsae.RemoveOperation, []byte(fmt.Sprintf("b%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	if err := b.Session(context.Background(), peerOf(a)); err != nil {
		t.Fatal(err)
	}

	if !a.GetLog().Equal(b.GetLog()) {
		t.Fatalf("logs should be equal:\n%s\n---\n%s", a.GetLog(), b.GetLog())
	}
	if !a.GetSummary().Equal(b.GetSummary()) {
		t.Fatal(cmp.Diff(a.GetSummary().ToWire(), b.GetSummary().ToWire()))
	}
	if a.GetLog().Len() != 10 {
		t.Fatalf("logs should hold 10 operations, not %d", a.GetLog().Len())
	}
}

func TestSessionUnreachable(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)

	a, b := nodes[0], nodes[1]
	a.trans.(*net.InmemTransport).Disconnect(peerOf(b).NetAddr)

	err := a.Session(context.Background(), peerOf(b))
	if !common.IsSession(err, common.TransportFailure) {
		t.Fatalf("session should fail with a TransportFailure, not %v", err)
	}

	if a.GetStats()["sessions_failed"] != "1" {
		t.Fatalf("failed session should be counted: %v", a.GetStats())
	}
}

// roguePartner answers the AE_REQUEST of an originator with the messages
// returned by reply.
func roguePartner(t *testing.T, trans *net.InmemTransport, reply func(sid int64) []net.Message) {
	go func() {
		conn := <-trans.Consumer()
		defer conn.Close()

		msg, err := conn.Receive()
		if err != nil {
			return
		}
		for _, m := range reply(msg.Session()) {
			if err := conn.Send(m); err != nil {
				return
			}
		}
		// wait for the originator to hang up
		conn.Receive()
	}()
}

func TestSessionProtocolViolation(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)

	a, b := nodes[0], nodes[1]

	if _, err := a.SubmitOperation(tsae.AddOperation, []byte("a0")); err != nil {
		t.Fatal(err)
	}

	// b is not running; its transport is driven by hand
	roguePartner(t, b.trans.(*net.InmemTransport), func(sid int64) []net.Message {
		op := tsae.NewOperation(tsae.NewTimestamp(b.ID(), 0), tsae.AddOperation, []byte("b0"))
		return []net.Message{
			net.NewOperationMessage(sid, op),
			net.NewEndTSAE(sid),
		}
	})

	err := a.Session(context.Background(), peerOf(b))
	if !common.IsSession(err, common.ProtocolViolation) {
		t.Fatalf("session should fail with a ProtocolViolation, not %v", err)
	}

	// operations admitted before the violation are kept, the merge is not
	// applied
	if seq := a.GetSummary().GetLast(b.ID()).Seq; seq != 0 {
		t.Fatalf("a should have admitted %s:0, summary has %d", b.ID(), seq)
	}
	if !a.GetAck().GetTimestampVector(b.ID()).GetLast(b.ID()).IsNull() {
		t.Fatal("a's row for b should not change")
	}
}

func TestSessionWrongSessionID(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)

	a, b := nodes[0], nodes[1]

	roguePartner(t, b.trans.(*net.InmemTransport), func(sid int64) []net.Message {
		return []net.Message{net.NewEndTSAE(sid + 1000)}
	})

	err := a.Session(context.Background(), peerOf(b))
	if !common.IsSession(err, common.ProtocolViolation) {
		t.Fatalf("session should fail with a ProtocolViolation, not %v", err)
	}
}

func TestSessionTimeout(t *testing.T) {
	conf := newTestConfig(t)
	conf.SessionTimeout = 100 * time.Millisecond
	nodes := initNodes(t, 2, conf, nil)
	defer shutdownNodes(nodes)

	a, b := nodes[0], nodes[1]

	// b never answers
	roguePartner(t, b.trans.(*net.InmemTransport), func(sid int64) []net.Message {
		return nil
	})

	start := time.Now()
	err := a.Session(context.Background(), peerOf(b))
	if !common.IsSession(err, common.TransportFailure) {
		t.Fatalf("session should fail with a TransportFailure, not %v", err)
	}
	if time.Since(start) >= testTimeout {
		t.Fatalf("session should be aborted by its own deadline, took %v", time.Since(start))
	}
}

type garbageMessage struct {
	SessionID int64
}

func (m *garbageMessage) Type() net.MsgType { return net.MsgType(0x7f) }

func (m *garbageMessage) Session() int64 { return m.SessionID }

func TestPartnerProtocolViolation(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	defer shutdownNodes(nodes)
	runNodes(nodes, false)

	a, b := nodes[0], nodes[1]

	conn, err := a.trans.Dial(peerOf(b).NetAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.Send(net.NewEndTSAE(1)); err != nil {
		t.Fatal(err)
	}

	// b closes the connection
	if _, err := conn.Receive(); err == nil {
		t.Fatal("b should hang up")
	}

	waitFor(t, testTimeout, func() bool {
		return b.GetStats()["sessions_failed"] == "1"
	})

	if b.GetState() != state.Gossiping {
		t.Fatalf("a protocol violation should not change the state, got %s", b.GetState())
	}
}

func TestSerializationFailuresSuspend(t *testing.T) {
	conf := newTestConfig(t)
	conf.MaxSerializationFailures = 2
	nodes := initNodes(t, 2, conf, nil)
	defer shutdownNodes(nodes)
	runNodes(nodes, false)

	a, b := nodes[0], nodes[1]

	for i := 1; i <= 3; i++ {
		conn, err := a.trans.Dial(peerOf(b).NetAddr)
		if err != nil {
			t.Fatal(err)
		}
		if err := conn.Send(&garbageMessage{SessionID: int64(i)}); err != nil {
			t.Fatal(err)
		}
		conn.Receive()
		conn.Close()

		if i < 3 {
			n := i
			waitFor(t, testTimeout, func() bool {
				return b.GetStats()["sessions_failed"] == fmt.Sprint(n)
			})
			if b.GetState() != state.Gossiping {
				t.Fatalf("b should still be gossiping after %d failures", i)
			}
		}
	}

	waitFor(t, testTimeout, func() bool {
		return b.GetState() == state.Suspended
	})

	// a suspended node does not serve sessions
	err := a.Session(context.Background(), peerOf(b))
	if !common.IsSession(err, common.TransportFailure) {
		t.Fatalf("session with a suspended node should fail, got %v", err)
	}

	b.Resume()
	if err := a.Session(context.Background(), peerOf(b)); err != nil {
		t.Fatal(err)
	}
}

func TestGossip(t *testing.T) {
	conf := newTestConfig(t)
	conf.NumPartners = 2
	conf.PurgeLog = true

	nodes := initNodes(t, 4, conf, nil)
	defer shutdownNodes(nodes)

	const numOps = 10
	for _, n := range nodes {
		for i := 0; i < numOps; i++ {
			if _, err := n.SubmitOperation(tsae.AddOperation, []byte(fmt.Sprintf("%s-%d", n.ID(), i))); err != nil {
				t.Fatal(err)
			}
		}
	}

	runNodes(nodes, true)

	expected := tsae.NewTimestampVector(nodes[0].core.Participants())
	for _, n := range nodes {
		expected.UpdateTimestamp(tsae.NewTimestamp(n.ID(), numOps-1))
	}

	waitFor(t, 5*time.Second, func() bool {
		for _, n := range nodes {
			if !n.GetSummary().Equal(expected) {
				return false
			}
		}
		return true
	})

	// every operation is eventually acknowledged by everyone
	waitFor(t, 5*time.Second, func() bool {
		for _, n := range nodes {
			if n.GetLog().Len() != 0 {
				return false
			}
		}
		return true
	})
}

func TestGossipRecipes(t *testing.T) {
	clients := make([]*dummy.InmemDummyClient, 3)
	nodes := initNodes(t, 3, newTestConfig(t), func(i int) proxy.AppProxy {
		clients[i] = dummy.NewInmemDummyClient(common.NewTestEntry(t, common.TestLogLevel))
		return clients[i]
	})
	defer shutdownNodes(nodes)
	runNodes(nodes, true)

	recipe := dummy.Recipe{
		Title:  "pancakes",
		Recipe: "flour, eggs, milk",
		Author: "node0",
	}
	if err := clients[0].AddRecipe(recipe); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		for _, c := range clients {
			if _, ok := c.GetRecipe("pancakes"); !ok {
				return false
			}
		}
		return true
	})

	got, _ := clients[2].GetRecipe("pancakes")
	if diff := cmp.Diff(recipe, got); diff != "" {
		t.Fatal(diff)
	}

	if err := clients[1].RemoveRecipe("pancakes"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		for _, c := range clients {
			if _, ok := c.GetRecipe("pancakes"); ok {
				return false
			}
		}
		return true
	})
}

func TestShutdown(t *testing.T) {
	nodes := initNodes(t, 2, newTestConfig(t), nil)
	runNodes(nodes, true)

	nodes[0].Shutdown()
	nodes[0].Shutdown()

	if nodes[0].GetState() != state.Shutdown {
		t.Fatalf("state should be Shutdown, not %s", nodes[0].GetState())
	}
	if _, err := nodes[0].SubmitOperation(tsae.AddOperation, nil); err == nil {
		t.Fatal("a shut down node should not accept operations")
	}

	err := nodes[1].Session(context.Background(), peerOf(nodes[0]))
	if err == nil {
		t.Fatal("session with a shut down node should fail")
	}

	nodes[1].Shutdown()
}

func TestShutdownDuringSessions(t *testing.T) {
	conf := newTestConfig(t)
	conf.HeartbeatTimeout = time.Millisecond
	conf.NumPartners = 3
	conf.PurgeLog = true

	for round := 0; round < 5; round++ {
		nodes := initNodes(t, 4, conf, nil)

		for _, n := range nodes {
			for i := 0; i < 20; i++ {
				if _, err := n.SubmitOperation(tsae.AddOperation, []byte(fmt.Sprintf("%s-%d", n.ID(), i))); err != nil {
					t.Fatal(err)
				}
			}
		}

		runNodes(nodes, true)

		waitFor(t, 5*time.Second, func() bool {
			for _, n := range nodes {
				if atomic.LoadInt64(&n.sessionsServed) == 0 {
					return false
				}
			}
			return true
		})

		shutdownNodes(nodes)

		for _, n := range nodes {
			if r := n.Running(); r != 0 {
				t.Fatalf("%s: %d partner handlers still running after shutdown", n.ID(), r)
			}
		}
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	nodes := initNodes(t, 1, newTestConfig(t), nil)

	nodes[0].Shutdown()

	done := make(chan struct{})
	go func() {
		nodes[0].Run(true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately on a shut down node")
	}
}

// panickingProxy panics on every admitted operation.
type panickingProxy struct {
	submitCh chan proxy.Submission
}

func (p *panickingProxy) SubmitCh() chan proxy.Submission { return p.submitCh }

func (p *panickingProxy) ApplyCreated(payload []byte) error {
	panic(fmt.Sprintf("cannot apply %s", payload))
}

func (p *panickingProxy) ApplyRemoved(payload []byte) error { return nil }

func (p *panickingProxy) OnStateChanged(state.State) error { return nil }

func TestPartnerPanic(t *testing.T) {
	conf := newTestConfig(t)
	hook := test.NewLocal(conf.Logger().Logger)

	nodes := initNodes(t, 2, conf, func(i int) proxy.AppProxy {
		if i == 1 {
			return &panickingProxy{submitCh: make(chan proxy.Submission)}
		}
		return nil
	})
	defer shutdownNodes(nodes)
	runNodes(nodes, false)

	a, b := nodes[0], nodes[1]

	conn, err := a.trans.Dial(peerOf(b).NetAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	const sid = 4242

	summary, ack := a.core.Snapshot()
	if err := conn.Send(net.NewAERequest(sid, a.ID(), summary, ack)); err != nil {
		t.Fatal(err)
	}

	// b answers with its operations and summary
	if _, err := conn.Receive(); err != nil {
		t.Fatal(err)
	}

	op := tsae.NewOperation(tsae.NewTimestamp(a.ID(), 0), tsae.AddOperation, []byte("boom"))
	if err := conn.Send(net.NewOperationMessage(sid, op)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, testTimeout, func() bool {
		return b.GetStats()["sessions_failed"] == "1"
	})

	var recovered *logrus.Entry
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "Recovered partner") {
			recovered = e
		}
	}
	if recovered == nil {
		t.Fatal("the panic should be logged")
	}
	if s, ok := recovered.Data["session"].(int64); !ok || s != sid {
		t.Fatalf("the recovered panic should be logged with session %d, not %v", sid, recovered.Data["session"])
	}

	if b.GetState() != state.Gossiping {
		t.Fatalf("a recovered panic should not change the state, got %s", b.GetState())
	}

	// the core is still usable
	summaryCh := make(chan *tsae.TimestampVector, 1)
	go func() { summaryCh <- b.GetSummary() }()
	select {
	case s := <-summaryCh:
		if last := s.GetLast(a.ID()).Seq; last != 0 {
			t.Fatalf("the operation should have been admitted before the panic, last is %d", last)
		}
	case <-time.After(testTimeout):
		t.Fatal("the core lock should be released after a panic")
	}
}
