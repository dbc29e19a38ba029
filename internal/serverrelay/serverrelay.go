// Package serverrelay implements the remote endpoint: it terminates the
// obfuscated tunnel from a local relay, speaks SOCKS5 over it (CONNECT
// only, no-auth only), dials the real destination, and bridges the two
// connections with decode-inbound / encode-outbound copy loops.
package serverrelay

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"lightsocks/internal/lserr"
	"lightsocks/internal/securestream"
	"lightsocks/internal/socket"
)

const (
	socks5Version = 0x05

	cmdConnect = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04
)

// successReply is the fixed reply sent after the destination dial. The
// bound address and port are zeroed: the SOCKS5 peer is the local relay,
// which never looks at them.
var successReply = []byte{socks5Version, 0x00, 0x00, atypIPv4, 0, 0, 0, 0, 0, 0}

// Relay accepts tunnel connections on ListenAddr and serves SOCKS5 over
// Stream's obfuscated codec.
type Relay struct {
	ListenAddr string
	Stream     *securestream.Stream
	Logger     *log.Logger

	// DidListen, if set, is called once with the bound address after the
	// listener is up.
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
	r.logf("server relay listening on %s", ln.Addr())

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

// handleConn runs one session: greeting, method reply, request, dial,
// success reply, then the two copy loops. Any failure before the relay
// stage closes the inbound connection with no SOCKS5 error reply.
func (r *Relay) handleConn(conn net.Conn) {
	peer := conn.RemoteAddr()

	dstAddr, err := r.handshake(conn)
	if err != nil {
		r.logf("[%s] %v", peer, err)
		conn.Close()
		return
	}

	dstConn, err := net.Dial("tcp", dstAddr)
	if err != nil {
		r.logf("[%s] %v", peer, fmt.Errorf("%w: %s: %v", lserr.ErrDialFailed, dstAddr, err))
		conn.Close()
		return
	}

	if err := r.Stream.EncodeWrite(conn, successReply); err != nil {
		conn.Close()
		dstConn.Close()
		return
	}

	r.logf("[%s] CONNECT %s", peer, dstAddr)

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			conn.Close()
			dstConn.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// client -> destination: decode tunneled bytes to plaintext.
		r.Stream.DecodeCopy(dstConn, conn)
	}()
	go func() {
		defer wg.Done()
		// destination -> client: encode plaintext into the tunnel.
		r.Stream.EncodeCopy(conn, dstConn)
	}()

	wg.Wait()
	closeBoth()
}

// handshake consumes the greeting and request frames and returns the
// destination in host:port form. Method negotiation accepts any method
// list and always answers no-auth; only the version byte, CMD, ATYP, and
// the request length are checked.
func (r *Relay) handshake(conn net.Conn) (string, error) {
	// Greeting: one frame, first byte must be the SOCKS5 version. The
	// method list is not inspected.
	frame, err := r.Stream.DecodeRead(conn)
	if err != nil {
		return "", err
	}
	if len(frame) < 1 || frame[0] != socks5Version {
		return "", fmt.Errorf("%w: bad greeting", lserr.ErrProtocolViolation)
	}

	if err := r.Stream.EncodeWrite(conn, []byte{socks5Version, 0x00}); err != nil {
		return "", err
	}

	// Request: VER CMD RSV ATYP DST.ADDR DST.PORT in one frame.
	frame, err = r.Stream.DecodeRead(conn)
	if err != nil {
		return "", err
	}
	if len(frame) < 7 {
		return "", fmt.Errorf("%w: short request (%d bytes)", lserr.ErrProtocolViolation, len(frame))
	}
	if frame[1] != cmdConnect {
		return "", fmt.Errorf("%w: unsupported command %#02x", lserr.ErrProtocolViolation, frame[1])
	}

	var host string
	switch frame[3] {
	case atypIPv4:
		if len(frame) < 10 {
			return "", fmt.Errorf("%w: truncated IPv4 request", lserr.ErrProtocolViolation)
		}
		host = net.IP(frame[4:8]).String()

	case atypDomain:
		nameLen := int(frame[4])
		if len(frame) < 7+nameLen {
			return "", fmt.Errorf("%w: truncated domain request", lserr.ErrProtocolViolation)
		}
		host = string(frame[5 : 5+nameLen])

	case atypIPv6:
		if len(frame) < 22 {
			return "", fmt.Errorf("%w: truncated IPv6 request", lserr.ErrProtocolViolation)
		}
		host = net.IP(frame[4:20]).String()

	default:
		return "", fmt.Errorf("%w: unsupported address type %#02x", lserr.ErrProtocolViolation, frame[3])
	}

	port := binary.BigEndian.Uint16(frame[len(frame)-2:])
	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}

func (r *Relay) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
