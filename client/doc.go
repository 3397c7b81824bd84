// Package client provides the boundary-side proxy for one node handle.
//
// A Proxy owns exactly one handle for its lifetime and forbids use
// after release: every method on a closed proxy fails without touching
// the registry, so a recycled-looking handle can never alias a newer
// resource. Close is idempotent and delegates to the protocol's own
// idempotent release.
//
// The scoped-acquisition form is With, which guarantees release on
// every exit path:
//
//	err := client.With(svc, nil, func(p *client.Proxy) error {
//	    info, err := p.Info()
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(info.PeerID)
//	    return nil
//	})
//
// Proxies abandoned without Close are released by a best-effort
// finalizer. Finalizer timing is not guaranteed, so under abnormal
// termination handles can still leak until the service's shutdown
// sweep runs; explicit Close or With remains the supported pattern.
package client
