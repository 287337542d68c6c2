package replica

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/mosaicnetworks/tsae/src/config"
	"github.com/mosaicnetworks/tsae/src/net"
	"github.com/mosaicnetworks/tsae/src/node"
	"github.com/mosaicnetworks/tsae/src/peers"
	"github.com/mosaicnetworks/tsae/src/service"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/sirupsen/logrus"
)

// Replica is the engine of a TSAE node.
type Replica struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     tsae.Store
	Peers     *peers.PeerSet
	Service   *service.Service

	// ID is the identity of the local node in Peers.
	ID string

	logger *logrus.Entry
}

// NewReplica ...
func NewReplica(conf *config.Config) *Replica {
	engine := &Replica{
		Config: conf,
		logger: conf.Logger(),
	}

	return engine
}

// Init initialises every component. Peers and Transport are only created if
// they were not set before.
func (r *Replica) Init() error {
	if err := r.initPeers(); err != nil {
		return err
	}

	if err := r.initTransport(); err != nil {
		return err
	}

	if err := r.initID(); err != nil {
		return err
	}

	if err := r.initStore(); err != nil {
		return err
	}

	if err := r.initNode(); err != nil {
		return err
	}

	if err := r.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service, if any, and runs the node. It blocks until the node
// shuts down.
func (r *Replica) Run() {
	if r.Service != nil {
		go r.Service.Serve()
	}

	r.Node.Run(true)
}

// Shutdown stops the service and the node.
func (r *Replica) Shutdown() {
	if r.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Service.Shutdown(ctx); err != nil {
			r.logger.WithError(err).Error("Stopping service")
		}
	}

	if r.Node != nil {
		r.Node.Shutdown()
	}
}

func (r *Replica) initPeers() error {
	if r.Peers != nil {
		return nil
	}

	peerStore := peers.NewJSONPeerSet(r.Config.DataDir)

	participants, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if participants == nil || participants.Len() < 2 {
		return fmt.Errorf("peers.json should define at least two peers")
	}

	r.Peers = participants

	return nil
}

func (r *Replica) initTransport() error {
	if r.Transport != nil {
		return nil
	}

	transport, err := net.NewTCPTransport(
		r.Config.BindAddr,
		r.Config.AdvertiseAddr,
		r.Config.TCPTimeout,
		r.logger,
	)
	if err != nil {
		return err
	}

	r.Transport = transport

	return nil
}

func (r *Replica) initID() error {
	addr := r.Transport.AdvertiseAddr()
	if r.Config.AdvertiseAddr != "" {
		addr = r.Config.AdvertiseAddr
	}

	self, ok := r.Peers.ByNetAddr[addr]
	if !ok {
		self, ok = r.Peers.ByNetAddr[r.Config.BindAddr]
	}
	if !ok {
		return fmt.Errorf("cannot find %s in peers.json", addr)
	}

	r.ID = self.ID

	r.logger = r.logger.WithField("id", r.ID)
	r.logger.WithField("participants", r.Peers.IDs()).Debug("PARTICIPANTS")

	return nil
}

func (r *Replica) initStore() error {
	participants := r.Peers.IDs()

	switch r.Config.Store {
	case config.InmemStore, "":
		r.Store = tsae.NewInmemStore(participants)
		r.logger.Debug("created new in-mem store")
		return nil
	case config.BadgerStore, config.SQLiteStore:
	default:
		return fmt.Errorf("unknown store %q", r.Config.Store)
	}

	path := r.Config.DatabaseDir
	if r.Config.Store == config.SQLiteStore {
		if err := os.MkdirAll(r.Config.DatabaseDir, 0755); err != nil {
			return err
		}
		path = r.Config.SQLiteFile()
	}

	if !r.Config.Bootstrap {
		if err := backup(path, r.logger); err != nil {
			return err
		}
	}

	r.logger.WithField("path", path).Debug("Attempting to load or create database")

	var err error
	if r.Config.Store == config.SQLiteStore {
		r.Store, err = tsae.LoadOrCreateSQLiteStore(participants, path)
	} else {
		r.Store, err = tsae.LoadOrCreateBadgerStore(participants, path)
	}
	if err != nil {
		return err
	}

	if r.Store.NeedBootstrap() {
		r.logger.Debug("loaded store from existing database")
		if !reflect.DeepEqual(r.Store.Participants(), participants) {
			r.Store.Close()
			return fmt.Errorf("database participants %v do not match peers.json %v",
				r.Store.Participants(), participants)
		}
	} else {
		r.logger.Debug("created new store from fresh database")
	}

	return nil
}

// backup moves an existing database out of the way so that a fresh one is
// created at path. The old one is kept under the first free name path(i).
func backup(path string, logger *logrus.Entry) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	for i := 1; ; i++ {
		dest := fmt.Sprintf("%s(%d)", path, i)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			logger.WithField("backup", dest).Debug("Moving existing database")
			return os.Rename(path, dest)
		}
	}
}

func (r *Replica) initNode() error {
	r.Node = node.NewNode(
		r.Config,
		r.ID,
		r.Peers,
		r.Store,
		r.Transport,
		r.Config.Proxy,
	)

	if err := r.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (r *Replica) initService() error {
	if !r.Config.NoService {
		r.Service = service.NewService(r.Config.ServiceAddr, r.Node, r.logger)
	}
	return nil
}
