// Package p2pcore embeds a long-lived libp2p node behind a small,
// handle-based control surface so that foreign runtimes can drive it
// through a C-compatible boundary.
//
// The package provides the native side of that boundary: a Node type
// wrapping a libp2p host together with its optional Kademlia DHT and
// GossipSub sub-services, a validated configuration record, and a strict
// lifecycle state machine (Created, Started, Stopped, Released). The
// boundary surface itself lives in the bridge and capi packages; the
// handle table lives in the registry package.
//
// # Getting Started
//
// Create a node from a configuration, start it, query it, release it:
//
//	cfg := p2pcore.DefaultConfig()
//	cfg.Listeners = []string{"/ip4/127.0.0.1/tcp/0"}
//
//	node, err := p2pcore.New(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	info, _ := node.Info()
//	fmt.Println(info.PeerID, info.Addrs)
//
// All lifecycle transitions on a single Node are serialized. Query
// operations read locally-held connectivity state and never touch the
// network, so they are safe to call concurrently with transitions.
//
// DHT routing, gossip propagation and relay circuits are owned entirely
// by go-libp2p; this package only controls their lifetime.
package p2pcore
