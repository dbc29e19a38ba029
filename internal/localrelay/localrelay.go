// Package localrelay implements the user-side endpoint: it accepts
// SOCKS5-speaking client connections without interpreting a single byte
// of SOCKS5, dials the server relay, and bridges the two with
// obfuscate-on-the-way-out / deobfuscate-on-the-way-in copy loops.
package localrelay

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"lightsocks/internal/lserr"
	"lightsocks/internal/securestream"
	"lightsocks/internal/socket"
)

// Relay accepts client connections on ListenAddr and tunnels each to
// ServerAddr through Stream's obfuscated codec.
type Relay struct {
	ListenAddr string
	ServerAddr string
	Stream     *securestream.Stream
	Logger     *log.Logger

	// DidListen, if set, is called once with the bound address after the
	// listener is up — e.g. to report an OS-assigned ephemeral port.
	DidListen func(net.Addr)

	listener net.Listener
	closed   int32
}

// ListenAndServe binds ListenAddr with address reuse enabled and accepts
// connections until Close is called. It blocks.
func (r *Relay) ListenAndServe() error {
	ln, err := socket.Listen(r.ListenAddr)
	if err != nil {
		return err
	}
	r.listener = ln

	if r.DidListen != nil {
		r.DidListen(ln.Addr())
	}
	r.logf("local relay listening on %s, tunneling to %s", ln.Addr(), r.ServerAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&r.closed) == 1 {
				return nil
			}
			r.logf("accept error: %v", err)
			continue
		}
		go r.handleConn(conn)
	}
}

// Close stops accepting new connections. In-flight sessions run to
// completion on their own.
func (r *Relay) Close() {
	atomic.StoreInt32(&r.closed, 1)
	if r.listener != nil {
		r.listener.Close()
	}
}

func (r *Relay) handleConn(clientConn net.Conn) {
	serverConn, err := net.Dial("tcp", r.ServerAddr)
	if err != nil {
		r.logf("[%s] %v", clientConn.RemoteAddr(), fmt.Errorf("%w: server %s: %v", lserr.ErrDialFailed, r.ServerAddr, err))
		clientConn.Close()
		return
	}

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			clientConn.Close()
			serverConn.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// user -> server: obfuscate outbound bytes.
		r.Stream.EncodeCopy(serverConn, clientConn)
	}()
	go func() {
		defer wg.Done()
		// server -> user: deobfuscate inbound bytes.
		r.Stream.DecodeCopy(clientConn, serverConn)
	}()

	wg.Wait()
	closeBoth()
}

func (r *Relay) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
