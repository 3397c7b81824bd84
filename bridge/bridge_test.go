package bridge

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/p2pcore"
	"github.com/opd-ai/p2pcore/codec"
	"github.com/opd-ai/p2pcore/registry"
)

// testConfigPayload keeps boundary tests on loopback with the heavier
// sub-services off.
const testConfigPayload = `{
	"listeners": ["/ip4/127.0.0.1/tcp/0"],
	"enableRelay": false,
	"enableDHT": false,
	"enablePubsub": false
}`

func createTestNode(t *testing.T, s *Service) (registry.Handle, *p2pcore.NodeInfo) {
	t.Helper()

	var info p2pcore.NodeInfo
	require.NoError(t, codec.Decode(s.Create(testConfigPayload), &info))
	h := registry.Handle(info.ID)
	t.Cleanup(func() { s.Release(h) })
	return h, &info
}

func TestDefaultConfiguration(t *testing.T) {
	s := NewService()

	cfg, err := codec.DecodeConfig(s.DefaultConfiguration())
	require.NoError(t, err)
	assert.Equal(t, p2pcore.DefaultConfig(), cfg)
}

func TestBuildConfiguration(t *testing.T) {
	s := NewService()

	resp := s.BuildConfiguration(`{"listeners":["/ip4/127.0.0.1/tcp/4001"],"kBucketSize":8}`)
	cfg, err := codec.DecodeConfig(resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001"}, cfg.Listeners)
	assert.Equal(t, 8, cfg.KBucketSize)
	assert.True(t, cfg.EnableDHT, "omitted flags get the documented defaults")

	assert.True(t, codec.IsError(s.BuildConfiguration(`{"listeners":["garbage"]}`)))
	assert.True(t, codec.IsError(s.BuildConfiguration(`not json`)))
	assert.True(t, codec.IsError(s.BuildConfiguration(`{"kBucketSize":-3}`)))
}

func TestValidateAddressOps(t *testing.T) {
	s := NewService()

	assert.True(t, s.ValidateAddress("/ip4/127.0.0.1/tcp/4001"))
	assert.False(t, s.ValidateAddress("invalid-address"))

	var body struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, codec.Decode(s.ValidateAddresses(`["/ip4/127.0.0.1/tcp/1","/ip6/::1/tcp/2"]`), &body))
	assert.True(t, body.Valid)

	require.NoError(t, codec.Decode(s.ValidateAddresses(`["/ip4/127.0.0.1/tcp/1","nope"]`), &body))
	assert.False(t, body.Valid)

	assert.True(t, codec.IsError(s.ValidateAddresses(`not a list`)))
}

func TestCreateReturnsRealizedDescriptor(t *testing.T) {
	s := NewService()
	h, info := createTestNode(t, s)

	assert.Greater(t, int64(h), int64(0))
	assert.NotEmpty(t, info.PeerID)
	assert.NotEmpty(t, info.Addrs)
	assert.Equal(t, "created", info.State)
	assert.Equal(t, 1, s.Live())
}

func TestCreateFailureLeavesRegistryClean(t *testing.T) {
	s := NewService()

	resp := s.Create(`{"listeners":["garbage"]}`)
	assert.True(t, codec.IsError(resp))
	assert.Equal(t, 0, s.Live(), "no handle may be issued on failure")

	resp = s.Create(`malformed payload`)
	assert.True(t, codec.IsError(resp))
	assert.Equal(t, 0, s.Live())

	// Binding TEST-NET space fails after validation passes; the
	// half-built host must be rolled back.
	resp = s.Create(`{"listeners":["/ip4/192.0.2.1/tcp/4001"],"enableDHT":false,"enablePubsub":false,"enableRelay":false}`)
	assert.True(t, codec.IsError(resp))
	assert.Equal(t, 0, s.Live())
}

func TestLifecycleScenario(t *testing.T) {
	s := NewService()
	h, _ := createTestNode(t, s)

	// start -> success
	assert.False(t, codec.IsError(s.Start(h)))

	// node_info -> descriptor with non-empty realized address list
	var info p2pcore.NodeInfo
	require.NoError(t, codec.Decode(s.NodeInfo(h), &info))
	assert.Equal(t, int64(h), info.ID)
	assert.NotEmpty(t, info.Addrs)
	assert.Equal(t, "started", info.State)

	// whoami -> identity descriptor
	var id p2pcore.Identity
	require.NoError(t, codec.Decode(s.Whoami(h), &id))
	assert.Equal(t, info.PeerID, id.PeerID)

	// release -> success; node_info afterwards -> error payload
	assert.False(t, codec.IsError(s.Release(h)))
	assert.True(t, codec.IsError(s.NodeInfo(h)))
	assert.Equal(t, 0, s.Live())
}

func TestQueriesBeforeStart(t *testing.T) {
	s := NewService()
	h, _ := createTestNode(t, s)

	assert.True(t, codec.IsError(s.NodeInfo(h)))
	assert.True(t, codec.IsError(s.Whoami(h)))
	assert.True(t, codec.IsError(s.ConnectedPeers(h)))
	assert.Equal(t, 0, s.PeerCount(h), "existing but unstarted node reports zero peers")
}

func TestUnknownHandleOps(t *testing.T) {
	s := NewService()
	const bogus = registry.Handle(9999)

	assert.True(t, codec.IsError(s.Start(bogus)))
	assert.True(t, codec.IsError(s.Stop(bogus)))
	assert.True(t, codec.IsError(s.NodeInfo(bogus)))
	assert.True(t, codec.IsError(s.ConnectBootstrap(bogus, `[]`)))
	assert.Equal(t, -1, s.PeerCount(bogus))
}

func TestStartStopIdempotence(t *testing.T) {
	s := NewService()
	h, _ := createTestNode(t, s)

	assert.False(t, codec.IsError(s.Start(h)))
	assert.False(t, codec.IsError(s.Start(h)), "start on a started node is a no-op success")
	assert.False(t, codec.IsError(s.Stop(h)))
	assert.False(t, codec.IsError(s.Stop(h)), "stop on a stopped node is a no-op success")
	assert.False(t, codec.IsError(s.Start(h)), "a stopped node can start again")
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := NewService()
	h, _ := createTestNode(t, s)

	assert.False(t, codec.IsError(s.Release(h)))
	assert.False(t, codec.IsError(s.Release(h)), "duplicate release is benign")
	assert.False(t, codec.IsError(s.Release(registry.Handle(12345))), "releasing an unknown handle is benign")
}

func TestHandlesNeverRecycledAcrossCreates(t *testing.T) {
	s := NewService()

	h1, _ := createTestNode(t, s)
	assert.False(t, codec.IsError(s.Release(h1)))

	h2, _ := createTestNode(t, s)
	assert.NotEqual(t, h1, h2)
}

func TestConnectBootstrapViaBoundary(t *testing.T) {
	s := NewService()
	h, _ := createTestNode(t, s)
	require.False(t, codec.IsError(s.Start(h)))

	// Unreachable peers are swallowed.
	resp := s.ConnectBootstrap(h, `["/ip4/127.0.0.1/tcp/1/p2p/QmaCpDMGvV2BGHeYERUEnRQAwe3N8SzbUtfsmvsqQLuvuJ"]`)
	assert.False(t, codec.IsError(resp))

	// Malformed lists and malformed addresses are not.
	assert.True(t, codec.IsError(s.ConnectBootstrap(h, `not json`)))
	assert.True(t, codec.IsError(s.ConnectBootstrap(h, `["garbage"]`)))
}

func TestConcurrentCreates(t *testing.T) {
	s := NewService()
	const n = 8

	var wg sync.WaitGroup
	handles := make(chan registry.Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var info p2pcore.NodeInfo
			if err := codec.Decode(s.Create(testConfigPayload), &info); err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			handles <- registry.Handle(info.ID)
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[registry.Handle]bool)
	for h := range handles {
		assert.False(t, seen[h], "handle %d issued twice", h)
		seen[h] = true

		// Each resource is independently queryable.
		assert.False(t, codec.IsError(s.Start(h)))
		var info p2pcore.NodeInfo
		assert.NoError(t, codec.Decode(s.NodeInfo(h), &info))
	}
	require.Len(t, seen, n)

	assert.Equal(t, n, s.Shutdown())
	assert.Equal(t, 0, s.Live())
}

func TestShutdownSweep(t *testing.T) {
	s := NewService()
	for i := 0; i < 3; i++ {
		var info p2pcore.NodeInfo
		require.NoError(t, codec.Decode(s.Create(testConfigPayload), &info))
	}
	require.Equal(t, 3, s.Live())

	assert.Equal(t, 3, s.Shutdown())
	assert.Equal(t, 0, s.Live())
	assert.Equal(t, 0, s.Shutdown(), "second sweep finds nothing")
}

func TestEveryFailureIsDecodable(t *testing.T) {
	s := NewService()

	responses := []string{
		s.Create(`{{{`),
		s.Start(registry.Handle(404)),
		s.NodeInfo(registry.Handle(404)),
		s.BuildConfiguration(`[1,2]`),
		s.ValidateAddresses(`17`),
	}
	for i, resp := range responses {
		msg, ok := codec.ErrorMessage(resp)
		assert.True(t, ok, "response %d is not an error payload: %s", i, resp)
		assert.NotEmpty(t, msg, fmt.Sprintf("response %d has an empty message", i))
	}
}
