package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/p2pcore"
	"github.com/opd-ai/p2pcore/codec"
	"github.com/opd-ai/p2pcore/registry"
)

// ABIVersion identifies the boundary schema. Clients probe it once
// before issuing any other call; payload shapes only change together
// with this number.
const ABIVersion = 1

// defaultOpTimeout bounds the native side of blocking operations
// (construction, bootstrap dialing). The protocol itself defines no
// timeout; this is local hygiene so an unreachable network cannot wedge
// the boundary forever.
const defaultOpTimeout = 30 * time.Second

// Service owns one handle registry and exposes every control operation
// over it. Operations on different handles proceed concurrently;
// operations on one handle are serialized by the node's own lifecycle
// lock.
type Service struct {
	reg       *registry.Registry
	opTimeout time.Duration
}

// NewService creates a service with an empty registry.
func NewService() *Service {
	return &Service{
		reg:       registry.New(),
		opTimeout: defaultOpTimeout,
	}
}

// Live returns the number of handles currently registered.
func (s *Service) Live() int {
	return s.reg.Len()
}

// lookup resolves a handle to its node.
func (s *Service) lookup(h registry.Handle) (*p2pcore.Node, error) {
	res, err := s.reg.Lookup(h)
	if err != nil {
		return nil, err
	}
	node, ok := res.(*p2pcore.Node)
	if !ok {
		// The registry only ever holds nodes; anything else means the
		// table was corrupted, which is not recoverable.
		logrus.WithFields(logrus.Fields{
			"function": "lookup",
			"handle":   int64(h),
		}).Panic("registry entry is not a node")
	}
	return node, nil
}

// DefaultConfiguration returns the documented default configuration
// record as an encoded payload.
func (s *Service) DefaultConfiguration() string {
	payload, err := codec.Encode(p2pcore.DefaultConfig())
	if err != nil {
		return codec.Errorf("encode default config: %v", err)
	}
	return payload
}

// BuildConfiguration fills defaults into a partial configuration
// payload, validates it, and returns the complete record. Malformed
// payloads and invalid records come back as error payloads; no resource
// is ever constructed here.
func (s *Service) BuildConfiguration(fields string) string {
	cfg, err := codec.DecodeConfig(fields)
	if err != nil {
		return codec.Error(err.Error())
	}
	payload, err := codec.Encode(cfg)
	if err != nil {
		return codec.Errorf("encode config: %v", err)
	}
	return payload
}

// ValidateAddress reports whether addr satisfies the address grammar.
// Pure; never touches the registry.
func (s *Service) ValidateAddress(addr string) bool {
	return p2pcore.ValidateAddress(addr)
}

// ValidateAddresses validates an encoded list of addresses, returning
// {"valid": bool} or an error payload if the list itself is malformed.
func (s *Service) ValidateAddresses(list string) string {
	addrs, err := codec.DecodeStringList(list)
	if err != nil {
		return codec.Error(err.Error())
	}
	payload, _ := codec.Encode(map[string]bool{"valid": p2pcore.ValidateAddresses(addrs)})
	return payload
}

// Create validates the configuration payload, constructs a node bound
// to its listeners, registers it, and returns the realized descriptor
// with the new handle filled in. On any failure the registry is left
// clean and no handle is issued.
func (s *Service) Create(config string) string {
	cfg, err := codec.DecodeConfig(config)
	if err != nil {
		return codec.Error(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	node, err := p2pcore.New(ctx, cfg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Create",
			"error":    err.Error(),
		}).Error("node construction failed")
		return codec.Error(err.Error())
	}

	h := s.reg.Allocate(node)
	info, err := node.Descriptor()
	if err != nil {
		// Descriptor on a freshly created node cannot fail unless the
		// node was released out from under us; undo the registration.
		if res, rerr := s.reg.Release(h); rerr == nil {
			res.Close()
		}
		return codec.Error(err.Error())
	}
	info.ID = int64(h)

	payload, err := codec.Encode(info)
	if err != nil {
		if res, rerr := s.reg.Release(h); rerr == nil {
			res.Close()
		}
		return codec.Errorf("encode descriptor: %v", err)
	}
	return payload
}

// Start transitions the node to started and begins background
// connectivity. Idempotent on an already started node.
func (s *Service) Start(h registry.Handle) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := node.Start(ctx); err != nil {
		return codec.Error(err.Error())
	}
	return codec.Success()
}

// Stop suspends background connectivity while keeping the handle alive.
// Idempotent on an already stopped node.
func (s *Service) Stop(h registry.Handle) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := node.Stop(ctx); err != nil {
		return codec.Error(err.Error())
	}
	return codec.Success()
}

// ConnectBootstrap dials each address in the encoded peer list. Only a
// malformed list or addresses that fail to parse produce an error
// payload; individual unreachable peers are logged and skipped.
func (s *Service) ConnectBootstrap(h registry.Handle, peers string) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}

	addrs, err := codec.DecodeStringList(peers)
	if err != nil {
		return codec.Error(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := node.ConnectBootstrap(ctx, addrs); err != nil {
		return codec.Error(err.Error())
	}
	return codec.Success()
}

// Whoami returns the identity descriptor of a started node.
func (s *Service) Whoami(h registry.Handle) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}
	id, err := node.Whoami()
	if err != nil {
		return codec.Error(err.Error())
	}
	payload, err := codec.Encode(id)
	if err != nil {
		return codec.Errorf("encode identity: %v", err)
	}
	return payload
}

// NodeInfo returns the full descriptor of a started node, handle
// included.
func (s *Service) NodeInfo(h registry.Handle) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}
	info, err := node.Info()
	if err != nil {
		return codec.Error(err.Error())
	}
	info.ID = int64(h)
	payload, err := codec.Encode(info)
	if err != nil {
		return codec.Errorf("encode descriptor: %v", err)
	}
	return payload
}

// PeerCount returns the connected peer count for a started node, 0 for
// a node that exists but is not started, and -1 for an unknown or
// released handle. The negative sentinel exists because this operation
// crosses the boundary as a bare integer with no room for an error
// payload.
func (s *Service) PeerCount(h registry.Handle) int {
	node, err := s.lookup(h)
	if err != nil {
		return -1
	}
	count, err := node.PeerCount()
	if err != nil {
		return 0
	}
	return count
}

// ConnectedPeers returns the peer identity list of a started node as
// {"peers": [...], "count": n}.
func (s *Service) ConnectedPeers(h registry.Handle) string {
	node, err := s.lookup(h)
	if err != nil {
		return codec.Error(err.Error())
	}
	peers, err := node.ConnectedPeers()
	if err != nil {
		return codec.Error(err.Error())
	}
	payload, err := codec.Encode(map[string]any{
		"peers": peers,
		"count": len(peers),
	})
	if err != nil {
		return codec.Errorf("encode peers: %v", err)
	}
	return payload
}

// Release tears the node down and removes its registry entry. Releasing
// an unknown or already released handle is a no-op success so that
// explicit closes and destructor-driven cleanup can race harmlessly.
func (s *Service) Release(h registry.Handle) string {
	res, err := s.reg.Release(h)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return codec.Success()
		}
		return codec.Error(err.Error())
	}
	if err := res.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Release",
			"handle":   int64(h),
			"error":    err.Error(),
		}).Warn("failed to close node")
	}
	return codec.Success()
}

// Shutdown releases every live handle and returns how many were swept.
// Safe to call more than once; the second sweep finds nothing.
func (s *Service) Shutdown() int {
	n := s.reg.Sweep()
	if n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Shutdown",
			"swept":    n,
		}).Info("released leaked handles at shutdown")
	}
	return n
}
