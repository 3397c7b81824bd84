package p2pcore

import (
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// ValidateAddress reports whether addr is an acceptable multiaddr for
// this protocol: a leading slash, alternating /protocol/value segments,
// at least one host segment (ip4, ip6 or dns variants) and one transport
// segment, and a well-formed peer-identity segment if one is present.
// A /dnsaddr/ segment counts as both host and transport since it
// resolves to complete addresses.
//
// The function is pure: it never dials, binds or touches the registry.
func ValidateAddress(addr string) bool {
	if !strings.HasPrefix(addr, "/") {
		return false
	}
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return false
	}

	var hasHost, hasTransport bool
	for _, proto := range ma.Protocols() {
		switch proto.Code {
		case multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6:
			hasHost = true
		case multiaddr.P_DNSADDR:
			hasHost = true
			hasTransport = true
		case multiaddr.P_TCP, multiaddr.P_UDP, multiaddr.P_QUIC, multiaddr.P_QUIC_V1, multiaddr.P_WS, multiaddr.P_WSS:
			hasTransport = true
		case multiaddr.P_P2P:
			id, err := ma.ValueForProtocol(multiaddr.P_P2P)
			if err != nil || !validPeerIdentity(id) {
				return false
			}
		}
	}
	return hasHost && hasTransport
}

// ValidateAddresses reports whether every address in addrs validates.
// Equivalent to the logical AND of ValidateAddress over all elements;
// an empty slice is vacuously valid.
func ValidateAddresses(addrs []string) bool {
	for _, addr := range addrs {
		if !ValidateAddress(addr) {
			return false
		}
	}
	return true
}

// validPeerIdentity checks the trailing identity segment of a multiaddr.
// Peer identities are base58-encoded multihashes: 34 bytes for a
// sha2-256 digest (Qm...) and up to 42 for an inlined ed25519 key
// (12D3KooW...).
func validPeerIdentity(id string) bool {
	raw, err := base58.Decode(id)
	if err != nil {
		return false
	}
	return len(raw) >= 34 && len(raw) <= 42
}

// parseBootstrapPeers converts bootstrap address strings into dialable
// AddrInfo records. A single malformed entry fails the whole parse; this
// is the only aggregate error connect_bootstrap surfaces, since per-peer
// dial failures are expected and merely logged.
func parseBootstrapPeers(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, &ValidationError{Field: "bootstrapPeers", Reason: "malformed multiaddr " + addr}
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "parseBootstrapPeers",
				"address":  addr,
				"error":    err.Error(),
			}).Debug("bootstrap address missing peer identity")
			return nil, &ValidationError{Field: "bootstrapPeers", Reason: "no peer identity in " + addr}
		}
		infos = append(infos, *info)
	}
	return infos, nil
}
