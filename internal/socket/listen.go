// Package socket provides the relays' listening-socket setup: address
// reuse so a restarted relay can rebind its port immediately.
package socket

import (
	"context"
	"net"
)

// Listen opens a TCP listener on addr with SO_REUSEADDR set before bind.
func Listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	return lc.Listen(context.Background(), "tcp", addr)
}
