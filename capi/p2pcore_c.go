package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/opd-ai/p2pcore/bridge"
	"github.com/opd-ai/p2pcore/registry"
)

func main() {} // Required for c-shared build mode

// svc is the process-wide service behind every export. It exists for
// the life of the loaded library; p2p_shutdown empties its registry.
var svc = bridge.NewService()

//export p2p_abi_version
func p2p_abi_version() C.int {
	return C.int(bridge.ABIVersion)
}

//export p2p_default_config
func p2p_default_config() *C.char {
	return C.CString(svc.DefaultConfiguration())
}

//export p2p_build_config
func p2p_build_config(fields *C.char) *C.char {
	return C.CString(svc.BuildConfiguration(C.GoString(fields)))
}

//export p2p_validate_address
func p2p_validate_address(addr *C.char) C.int {
	if svc.ValidateAddress(C.GoString(addr)) {
		return 1
	}
	return 0
}

//export p2p_validate_addresses
func p2p_validate_addresses(list *C.char) *C.char {
	return C.CString(svc.ValidateAddresses(C.GoString(list)))
}

//export p2p_create
func p2p_create(config *C.char) *C.char {
	return C.CString(svc.Create(C.GoString(config)))
}

//export p2p_start
func p2p_start(handle C.longlong) *C.char {
	return C.CString(svc.Start(registry.Handle(handle)))
}

//export p2p_stop
func p2p_stop(handle C.longlong) *C.char {
	return C.CString(svc.Stop(registry.Handle(handle)))
}

//export p2p_connect_bootstrap
func p2p_connect_bootstrap(handle C.longlong, peers *C.char) *C.char {
	return C.CString(svc.ConnectBootstrap(registry.Handle(handle), C.GoString(peers)))
}

//export p2p_whoami
func p2p_whoami(handle C.longlong) *C.char {
	return C.CString(svc.Whoami(registry.Handle(handle)))
}

//export p2p_node_info
func p2p_node_info(handle C.longlong) *C.char {
	return C.CString(svc.NodeInfo(registry.Handle(handle)))
}

//export p2p_peer_count
func p2p_peer_count(handle C.longlong) C.int {
	return C.int(svc.PeerCount(registry.Handle(handle)))
}

//export p2p_connected_peers
func p2p_connected_peers(handle C.longlong) *C.char {
	return C.CString(svc.ConnectedPeers(registry.Handle(handle)))
}

//export p2p_release
func p2p_release(handle C.longlong) *C.char {
	return C.CString(svc.Release(registry.Handle(handle)))
}

//export p2p_shutdown
func p2p_shutdown() C.int {
	return C.int(svc.Shutdown())
}

//export p2p_free_string
func p2p_free_string(str *C.char) {
	C.free(unsafe.Pointer(str))
}
