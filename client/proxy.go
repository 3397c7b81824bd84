package client

import (
	"errors"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/p2pcore"
	"github.com/opd-ai/p2pcore/bridge"
	"github.com/opd-ai/p2pcore/codec"
	"github.com/opd-ai/p2pcore/registry"
)

// ErrReleased is returned by every operation on a proxy whose handle
// has been released.
var ErrReleased = errors.New("proxy already released")

// Proxy holds one node handle and speaks the encoded control protocol
// on behalf of its owner.
type Proxy struct {
	svc    *bridge.Service
	handle registry.Handle

	mu       sync.Mutex
	released bool
}

// Create builds a node from cfg through the control protocol and wraps
// the resulting handle in a proxy. A nil cfg means the default
// configuration. The proxy carries a best-effort finalizer; callers
// should still Close explicitly or use With.
func Create(svc *bridge.Service, cfg *p2pcore.Config) (*Proxy, error) {
	if cfg == nil {
		cfg = p2pcore.DefaultConfig()
	}
	payload, err := codec.Encode(cfg)
	if err != nil {
		return nil, err
	}

	var info p2pcore.NodeInfo
	if err := codec.Decode(svc.Create(payload), &info); err != nil {
		return nil, err
	}

	p := &Proxy{
		svc:    svc,
		handle: registry.Handle(info.ID),
	}
	runtime.SetFinalizer(p, func(p *Proxy) {
		if err := p.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "finalizer",
				"handle":   int64(p.handle),
				"error":    err.Error(),
			}).Warn("best-effort release failed")
		}
	})
	return p, nil
}

// Handle returns the handle this proxy owns.
func (p *Proxy) Handle() registry.Handle {
	return p.handle
}

// guard fails fast once the handle is released.
func (p *Proxy) guard() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	return nil
}

// checked converts an encoded response into a Go error.
func checked(payload string) error {
	if msg, ok := codec.ErrorMessage(payload); ok {
		return &codec.RemoteError{Message: msg}
	}
	return nil
}

// Start starts the node. Idempotent when already started.
func (p *Proxy) Start() error {
	if err := p.guard(); err != nil {
		return err
	}
	return checked(p.svc.Start(p.handle))
}

// Stop stops the node. Idempotent when already stopped.
func (p *Proxy) Stop() error {
	if err := p.guard(); err != nil {
		return err
	}
	return checked(p.svc.Stop(p.handle))
}

// ConnectBootstrap dials the given peer addresses; unreachable peers
// are skipped on the native side.
func (p *Proxy) ConnectBootstrap(addrs []string) error {
	if err := p.guard(); err != nil {
		return err
	}
	payload, err := codec.Encode(addrs)
	if err != nil {
		return err
	}
	return checked(p.svc.ConnectBootstrap(p.handle, payload))
}

// Whoami returns the node's identity descriptor.
func (p *Proxy) Whoami() (*p2pcore.Identity, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	var id p2pcore.Identity
	if err := codec.Decode(p.svc.Whoami(p.handle), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Info returns the node's full descriptor.
func (p *Proxy) Info() (*p2pcore.NodeInfo, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	var info p2pcore.NodeInfo
	if err := codec.Decode(p.svc.NodeInfo(p.handle), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PeerCount returns the number of connected peers.
func (p *Proxy) PeerCount() (int, error) {
	if err := p.guard(); err != nil {
		return 0, err
	}
	count := p.svc.PeerCount(p.handle)
	if count < 0 {
		return 0, registry.ErrNotFound
	}
	return count, nil
}

// ConnectedPeers returns the identities of connected peers.
func (p *Proxy) ConnectedPeers() ([]string, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	var body struct {
		Peers []string `json:"peers"`
		Count int      `json:"count"`
	}
	if err := codec.Decode(p.svc.ConnectedPeers(p.handle), &body); err != nil {
		return nil, err
	}
	return body.Peers, nil
}

// Close releases the handle. Safe to call any number of times; only the
// first call reaches the registry.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.mu.Unlock()

	runtime.SetFinalizer(p, nil)
	return checked(p.svc.Release(p.handle))
}

// With runs fn against a freshly created and started node and releases
// it on every exit path, normal return and panic alike.
func With(svc *bridge.Service, cfg *p2pcore.Config, fn func(*Proxy) error) error {
	p, err := Create(svc, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Start(); err != nil {
		return err
	}
	return fn(p)
}
