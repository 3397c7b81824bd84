package p2pcore

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// State is the lifecycle state of a Node. Transitions are strictly
// ordered: Created -> Started <-> Stopped, with Released reachable from
// any state and terminal.
type State uint8

const (
	StateCreated State = iota
	StateStarted
	StateStopped
	StateReleased
)

// String returns the lowercase state name used in logs and descriptors.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Node is a libp2p host plus its optional DHT and pubsub sub-services,
// wrapped in a lifecycle state machine. A Node is owned by the handle
// registry; boundary clients only ever see its handle.
//
// The mutex serializes lifecycle transitions. Queries take the read
// side, so they run concurrently with each other and are never
// interleaved with a half-finished transition.
type Node struct {
	mu    sync.RWMutex
	state State

	cfg    *Config
	host   host.Host
	kdht   *dht.IpfsDHT
	gossip *pubsub.PubSub

	// baseCtx spans the node's whole life; runCancel stops the
	// background activity of the current Started period only.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	runCancel  context.CancelFunc
}

// New constructs a node bound to the listeners in cfg, with the
// sub-services selected by its feature flags. The returned node is in
// StateCreated: its listeners are bound and its identity is fixed, but
// no background connectivity runs until Start.
//
// Construction is atomic: on any failure every component built so far is
// torn down and a ConstructionError is returned. A nil cfg means
// DefaultConfig.
func New(ctx context.Context, cfg *Config) (*Node, error) {
	cfg, err := BuildConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &ConstructionError{Stage: "setup", Cause: err}
	}

	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
	if err != nil {
		return nil, &ConstructionError{Stage: "identity", Cause: err}
	}

	listenAddrs := make([]multiaddr.Multiaddr, 0, len(cfg.Listeners))
	for _, addr := range cfg.Listeners {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, &ValidationError{Field: "listeners", Reason: "malformed multiaddr " + addr}
		}
		listenAddrs = append(listenAddrs, ma)
	}

	cm, err := connmgr.NewConnManager(100, 400, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, &ConstructionError{Stage: "connmgr", Cause: err}
	}

	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ConnectionManager(cm),
		libp2p.NATPortMap(),
	}
	if cfg.EnableRelay {
		opts = append(opts, libp2p.EnableRelay())
	} else {
		opts = append(opts, libp2p.DisableRelay())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, &ConstructionError{Stage: "host", Cause: err}
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	node := &Node{
		state:      StateCreated,
		cfg:        cfg,
		host:       h,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	if cfg.EnableDHT {
		node.kdht, err = dht.New(baseCtx, h,
			dht.Mode(dht.ModeServer),
			dht.ProtocolPrefix(protocol.ID(cfg.DHTProtocolPrefix)),
			dht.BucketSize(cfg.KBucketSize),
		)
		if err != nil {
			baseCancel()
			h.Close()
			return nil, &ConstructionError{Stage: "dht", Cause: err}
		}
	}

	if cfg.EnablePubsub {
		node.gossip, err = pubsub.NewGossipSub(baseCtx, h,
			pubsub.WithMessageSigning(true),
			pubsub.WithStrictSignatureVerification(true),
		)
		if err != nil {
			baseCancel()
			if node.kdht != nil {
				node.kdht.Close()
			}
			h.Close()
			return nil, &ConstructionError{Stage: "pubsub", Cause: err}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"peer_id":  h.ID().String(),
		"dht":      cfg.EnableDHT,
		"pubsub":   cfg.EnablePubsub,
		"relay":    cfg.EnableRelay,
	}).Debug("node constructed")

	return node, nil
}

// Config returns the configuration the node was built from.
func (n *Node) Config() *Config {
	return n.cfg
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Start transitions the node to StateStarted and begins background
// connectivity: DHT bootstrap and dialing of the configured bootstrap
// peers. Starting an already started node is a no-op success; starting
// a released node fails with a LifecycleError.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStarted:
		return nil
	case StateReleased:
		return &LifecycleError{Op: "start", State: n.state}
	}

	runCtx, runCancel := context.WithCancel(n.baseCtx)
	n.runCancel = runCancel

	if n.kdht != nil {
		if err := n.kdht.Bootstrap(runCtx); err != nil {
			// Routing refresh is best-effort background work; a node
			// without DHT peers is degraded, not broken.
			logrus.WithFields(logrus.Fields{
				"function": "Start",
				"peer_id":  n.host.ID().String(),
				"error":    err.Error(),
			}).Warn("DHT bootstrap failed")
		}
	}

	if len(n.cfg.BootstrapPeers) > 0 {
		go n.dialBootstrapPeers(runCtx, n.cfg.BootstrapPeers)
	}

	n.state = StateStarted
	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"peer_id":  n.host.ID().String(),
	}).Debug("node started")
	return nil
}

// Stop suspends background connectivity and closes open connections
// while keeping the node and its handle alive for a later Start.
// Stopping an already stopped node is a no-op success. Stopping a node
// that was never started, or one already released, fails with a
// LifecycleError.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateStopped:
		return nil
	case StateCreated, StateReleased:
		return &LifecycleError{Op: "stop", State: n.state}
	}

	if n.runCancel != nil {
		n.runCancel()
		n.runCancel = nil
	}
	for _, conn := range n.host.Network().Conns() {
		if err := conn.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stop",
				"peer_id":  n.host.ID().String(),
				"remote":   conn.RemotePeer().String(),
				"error":    err.Error(),
			}).Debug("failed to close connection")
		}
	}

	n.state = StateStopped
	logrus.WithFields(logrus.Fields{
		"function": "Stop",
		"peer_id":  n.host.ID().String(),
	}).Debug("node stopped")
	return nil
}

// ConnectBootstrap dials each of the given peer addresses. It is valid
// only on a started node. Addresses that fail to parse abort the whole
// call with a ValidationError; peers that parse but cannot be reached
// are logged and skipped, since partial connectivity is expected.
func (n *Node) ConnectBootstrap(ctx context.Context, addrs []string) error {
	n.mu.RLock()
	if n.state != StateStarted {
		defer n.mu.RUnlock()
		return &LifecycleError{Op: "connect", State: n.state}
	}
	h := n.host
	n.mu.RUnlock()

	infos, err := parseBootstrapPeers(addrs)
	if err != nil {
		return err
	}

	for _, info := range infos {
		if err := h.Connect(ctx, info); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ConnectBootstrap",
				"peer":     info.ID.String(),
				"error":    err.Error(),
			}).Warn("failed to connect to bootstrap peer")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function": "ConnectBootstrap",
			"peer":     info.ID.String(),
		}).Debug("connected to bootstrap peer")
	}
	return nil
}

// dialBootstrapPeers dials the configured bootstrap peers in the
// background of a Started period. Dial failures are logged and skipped.
func (n *Node) dialBootstrapPeers(ctx context.Context, addrs []string) {
	infos, err := parseBootstrapPeers(addrs)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "dialBootstrapPeers",
			"error":    err.Error(),
		}).Warn("skipping malformed bootstrap peers")
		return
	}
	for _, info := range infos {
		if ctx.Err() != nil {
			return
		}
		if err := n.host.Connect(ctx, info); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "dialBootstrapPeers",
				"peer":     info.ID.String(),
				"error":    err.Error(),
			}).Warn("failed to connect to bootstrap peer")
		}
	}
}

// Close releases every native resource the node holds: background
// activity is cancelled, the DHT and host are shut down, and the node
// enters the terminal StateReleased. Close is idempotent; closing a
// released node is a no-op success so that destructors and explicit
// cleanup calls can race harmlessly at process teardown.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateReleased {
		return nil
	}

	peerID := n.host.ID().String()
	n.baseCancel()
	if n.kdht != nil {
		if err := n.kdht.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Close",
				"peer_id":  peerID,
				"error":    err.Error(),
			}).Warn("failed to close DHT")
		}
	}
	if err := n.host.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"peer_id":  peerID,
			"error":    err.Error(),
		}).Warn("failed to close host")
	}

	n.state = StateReleased
	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"peer_id":  peerID,
	}).Debug("node released")
	return nil
}

// ID returns the node's peer identity. Valid in every state before
// Released since the identity is fixed at construction time.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}
