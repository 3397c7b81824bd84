package p2pcore

// Config describes a node before it is constructed. A Config is a plain
// value: it holds no live resources and never touches the handle table.
//
// The JSON field names are part of the boundary protocol and must stay
// stable across releases.
type Config struct {
	// Listeners are the multiaddrs the host will bind. Ephemeral ports
	// ("/tcp/0") are resolved to concrete ports at construction time.
	Listeners []string `json:"listeners"`
	// BootstrapPeers are dialed when the node is started. Each entry
	// must carry a /p2p/ peer-identity segment.
	BootstrapPeers []string `json:"bootstrapPeers"`
	// EnableRelay enables circuit relay transport.
	EnableRelay bool `json:"enableRelay"`
	// EnableDHT enables the Kademlia DHT sub-service.
	EnableDHT bool `json:"enableDHT"`
	// EnablePubsub enables the GossipSub sub-service.
	EnablePubsub bool `json:"enablePubsub"`
	// DHTProtocolPrefix selects the DHT protocol namespace.
	DHTProtocolPrefix string `json:"dhtProtocolPrefix"`
	// KBucketSize sets the maximum entries per DHT routing bucket.
	KBucketSize int `json:"kBucketSize"`
}

// DefaultKBucketSize is the routing bucket size used when a
// configuration does not specify one.
const DefaultKBucketSize = 20

// DefaultDHTProtocolPrefix is the DHT protocol namespace used when a
// configuration does not specify one.
const DefaultDHTProtocolPrefix = "/ipfs/kad/1.0.0"

// DefaultConfig returns the documented default configuration: a single
// wildcard TCP listener on an ephemeral port, no bootstrap peers, all
// sub-services enabled, bucket size 20.
func DefaultConfig() *Config {
	return &Config{
		Listeners:         []string{"/ip4/0.0.0.0/tcp/0"},
		BootstrapPeers:    []string{},
		EnableRelay:       true,
		EnableDHT:         true,
		EnablePubsub:      true,
		DHTProtocolPrefix: DefaultDHTProtocolPrefix,
		KBucketSize:       DefaultKBucketSize,
	}
}

// Validate checks that every listener and bootstrap peer address is a
// well-formed multiaddr per ValidateAddress and that the bucket size is
// positive. It has no side effects; an invalid Config can never reach
// the registry because New refuses it.
func (c *Config) Validate() error {
	for _, addr := range c.Listeners {
		if !ValidateAddress(addr) {
			return &ValidationError{Field: "listeners", Reason: "malformed multiaddr " + addr}
		}
	}
	for _, addr := range c.BootstrapPeers {
		if !ValidateAddress(addr) {
			return &ValidationError{Field: "bootstrapPeers", Reason: "malformed multiaddr " + addr}
		}
	}
	if c.KBucketSize <= 0 {
		return &ValidationError{Field: "kBucketSize", Reason: "must be a positive integer"}
	}
	return nil
}

// normalized returns a copy with nil slices replaced by their defaults
// and zero numeric/string fields filled in. Callers that decoded a
// partial record get the documented defaults for everything they
// omitted; explicitly empty slices are preserved.
func (c *Config) normalized() *Config {
	out := *c
	if out.Listeners == nil {
		out.Listeners = DefaultConfig().Listeners
	}
	if out.BootstrapPeers == nil {
		out.BootstrapPeers = []string{}
	}
	if out.DHTProtocolPrefix == "" {
		out.DHTProtocolPrefix = DefaultDHTProtocolPrefix
	}
	if out.KBucketSize == 0 {
		out.KBucketSize = DefaultKBucketSize
	}
	return &out
}

// BuildConfig fills defaults into a partially specified record and
// validates the result. This is the only supported way to turn raw
// user-supplied fields into a Config that New will accept.
func BuildConfig(raw *Config) (*Config, error) {
	if raw == nil {
		return DefaultConfig(), nil
	}
	cfg := raw.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
