package p2pcore

import (
	"fmt"
)

// NodeInfo is the descriptor returned across the boundary for a running
// node. It is a single consistent snapshot: every field reflects the
// same instant even if connectivity changes while it is being built.
//
// The JSON field names are part of the boundary protocol.
type NodeInfo struct {
	ID             int64    `json:"id"`
	PeerID         string   `json:"peerId"`
	Addrs          []string `json:"addrs"`
	HasDHT         bool     `json:"hasDHT"`
	HasPubsub      bool     `json:"hasPubsub"`
	HasRelay       bool     `json:"hasRelay"`
	Protocols      []string `json:"protocols"`
	ConnectedPeers []string `json:"connectedPeers"`
	PeerCount      int      `json:"peerCount"`
	State          string   `json:"state"`
}

// Identity is the minimal self-description of a node: its peer identity
// and the addresses it is actually reachable on.
type Identity struct {
	PeerID string   `json:"peerId"`
	Addrs  []string `json:"addrs"`
}

// requireStarted is called with at least the read lock held.
func (n *Node) requireStarted(op string) error {
	if n.state != StateStarted {
		return &LifecycleError{Op: op, State: n.state}
	}
	return nil
}

// PeerCount returns the number of currently connected peers. Valid only
// on a started node. The count is read from the host's local connection
// table; no network I/O happens.
func (n *Node) PeerCount() (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.requireStarted("query"); err != nil {
		return 0, err
	}
	return len(n.host.Network().Peers()), nil
}

// ConnectedPeers returns the identities of all currently connected
// peers. Membership is a set by construction, so the result carries no
// duplicates; order is not significant. Valid only on a started node.
func (n *Node) ConnectedPeers() ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.requireStarted("query"); err != nil {
		return nil, err
	}
	peers := n.host.Network().Peers()
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.String()
	}
	return out, nil
}

// Whoami returns the node's identity descriptor: peer ID and realized
// addresses. Valid only on a started node.
func (n *Node) Whoami() (*Identity, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.requireStarted("whoami"); err != nil {
		return nil, err
	}
	return &Identity{
		PeerID: n.host.ID().String(),
		Addrs:  n.realizedAddrs(),
	}, nil
}

// Info returns the full descriptor for a started node. The peer set is
// read exactly once so the peer list and peer count can never disagree
// within one descriptor.
func (n *Node) Info() (*NodeInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.requireStarted("query"); err != nil {
		return nil, err
	}
	return n.snapshotLocked(), nil
}

// Descriptor returns the realized descriptor for a node in any state
// short of Released: actual bound addresses, identity and active
// sub-services. This is what create hands back before the node has ever
// been started; once released there is nothing left to describe.
func (n *Node) Descriptor() (*NodeInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state == StateReleased {
		return nil, &LifecycleError{Op: "describe", State: n.state}
	}
	return n.snapshotLocked(), nil
}

// snapshotLocked builds a descriptor from a single read of the host's
// connection table. Called with at least the read lock held.
func (n *Node) snapshotLocked() *NodeInfo {
	peers := n.host.Network().Peers()
	peerStrs := make([]string, len(peers))
	for i, p := range peers {
		peerStrs[i] = p.String()
	}

	muxProtocols := n.host.Mux().Protocols()
	protocols := make([]string, len(muxProtocols))
	for i, p := range muxProtocols {
		protocols[i] = string(p)
	}

	return &NodeInfo{
		PeerID:         n.host.ID().String(),
		Addrs:          n.realizedAddrs(),
		HasDHT:         n.kdht != nil,
		HasPubsub:      n.gossip != nil,
		HasRelay:       n.cfg.EnableRelay,
		Protocols:      protocols,
		ConnectedPeers: peerStrs,
		PeerCount:      len(peers),
		State:          n.state.String(),
	}
}

// realizedAddrs returns the host's actually bound addresses with the
// peer identity appended, so each entry is dialable as-is. Requested
// ephemeral ports show up here resolved to concrete ports. Called with
// at least the read lock held.
func (n *Node) realizedAddrs() []string {
	id := n.host.ID().String()
	addrs := n.host.Addrs()
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = fmt.Sprintf("%s/p2p/%s", addr.String(), id)
	}
	return out
}
