// Package udpendpoint wraps a bound net.UDPConn with a cached remote
// address and a receive loop that hands every inbound datagram to its
// owning eventloop.EventLoop as a thunk, so decode and dispatch never
// race with anything else the component does.
//
// The remote address is resolved when SetRemote is called, not on the
// first Send: a resolution failure is returned by SetRemote (and so by
// transport.Transport.Start), and the cached address is kept after a
// failed Send rather than resolved again.
package udpendpoint

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/kulve/pleco-go/internal/bufpool"
	"github.com/kulve/pleco-go/internal/errors"
	"github.com/kulve/pleco-go/internal/eventloop"

	"golang.org/x/time/rate"
)

// MaxDatagramSize is the largest payload recv_from will accept in one
// read; a UDP datagram that does not fit is indistinguishable from
// truncated reads at the syscall level, so any read that exactly fills a
// buffer sized MaxDatagramSize+1 is treated as an oversize-and-truncated
// error rather than silently delivering a short frame.
const MaxDatagramSize = 65536

// Endpoint is a bound UDP socket whose inbound datagrams are delivered on
// a caller-owned EventLoop and whose outbound destination is resolved
// once and cached.
type Endpoint struct {
	conn *net.UDPConn
	loop *eventloop.EventLoop
	pool *bufpool.Pool

	onRecv func(payload []byte, from *net.UDPAddr)

	limiter *rate.Limiter

	mu         sync.Mutex
	remoteHost string
	remotePort int
	remoteAddr *net.UDPAddr

	cancel context.CancelFunc
}

// Config configures an Endpoint.
type Config struct {
	// LocalPort to bind; 0 lets the kernel pick an ephemeral port.
	LocalPort int
	// OutboundRateLimit, if non-zero, caps outbound datagrams per second
	// via a token bucket (burst equal to the rate). Zero disables limiting.
	OutboundRateLimit float64
}

// Bind opens a UDP socket on all interfaces at cfg.LocalPort and returns
// an Endpoint ready to Send/registered for receive via Start.
func Bind(loop *eventloop.EventLoop, cfg Config) (*Endpoint, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: cfg.LocalPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.NewNetError(errors.NetResolveFailed, "bind", err)
	}

	e := &Endpoint{
		conn: conn,
		loop: loop,
		pool: bufpool.New(),
	}
	if cfg.OutboundRateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.OutboundRateLimit), int(cfg.OutboundRateLimit))
	}
	return e, nil
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr { return e.conn.LocalAddr().(*net.UDPAddr) }

// SetRemote sets (or changes) the destination for Send, resolving and
// caching the address once. Cheap to call repeatedly with the same
// host/port; re-resolves only when either changes.
func (e *Endpoint) SetRemote(host string, port int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remoteAddr != nil && e.remoteHost == host && e.remotePort == port {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return errors.NewNetError(errors.NetResolveFailed, "set_remote", err)
	}
	e.remoteHost, e.remotePort, e.remoteAddr = host, port, addr
	return nil
}

// Remote returns the currently cached remote address, or nil if SetRemote
// has never succeeded.
func (e *Endpoint) Remote() *net.UDPAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteAddr
}

// Send writes payload to the cached remote address. Returns a NetError if
// no remote is set or the write fails. When an outbound rate limit is
// configured, Send blocks until a token is available or ctx is done.
func (e *Endpoint) Send(ctx context.Context, payload []byte) error {
	remote := e.Remote()
	if remote == nil {
		return errors.NewNetError(errors.NetSendFailed, "send", fmt.Errorf("no remote address set"))
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return errors.NewNetError(errors.NetSendFailed, "send", err)
		}
	}
	if _, err := e.conn.WriteToUDP(payload, remote); err != nil {
		return errors.NewNetError(errors.NetSendFailed, "send", err)
	}
	return nil
}

// OnReceive registers the callback invoked (on the owning EventLoop) for
// every successfully-read datagram. Must be set before Start.
func (e *Endpoint) OnReceive(fn func(payload []byte, from *net.UDPAddr)) {
	e.onRecv = fn
}

// Start launches the blocking receive loop in its own goroutine. Every
// datagram read is posted to the EventLoop as a thunk; Start returns
// immediately. Stop via ctx cancellation.
func (e *Endpoint) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.recvLoop(ctx)
}

func (e *Endpoint) recvLoop(ctx context.Context) {
	buf := make([]byte, MaxDatagramSize+1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			continue
		}
		if n > MaxDatagramSize {
			continue
		}
		payload := e.pool.Get(n)
		copy(payload, buf[:n])
		e.loop.Post(func() {
			if e.onRecv != nil {
				e.onRecv(payload, from)
			}
			e.pool.Put(payload)
		})
	}
}

// Close stops the receive loop and closes the socket.
func (e *Endpoint) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.conn.Close()
}
