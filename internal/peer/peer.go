// Package peer is the thin, application-facing facade over
// transport.Transport: it owns the local peer identity, binds the
// EventLoop/UdpEndpoint/Transport trio together, and forwards callback
// registration with a stable role-tagged log line the way the teacher
// codebase's hook manager logs each registration.
package peer

import (
	"context"
	"log/slog"

	"github.com/rs/xid"

	"github.com/kulve/pleco-go/internal/eventloop"
	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/message"
	"github.com/kulve/pleco-go/internal/transport"
	"github.com/kulve/pleco-go/internal/udpendpoint"
)

// Role names the two ends of a pleco link, attached to every log line a
// Peer emits so multi-peer processes (the relay, tests) stay readable.
type Role string

const (
	RoleController Role = "controller"
	RoleSlave      Role = "slave"
)

// Callbacks is an alias of transport.Callbacks, so application code can
// name the callback set through internal/peer; it is the same type, not a
// separate one.
type Callbacks = transport.Callbacks

// Peer is one end of a reliable UDP link to a single remote host.
type Peer struct {
	id   string
	role Role
	log  *slog.Logger

	loop      *eventloop.EventLoop
	endpoint  *udpendpoint.Endpoint
	transport *transport.Transport
}

// Config configures a Peer's transport and socket.
type Config struct {
	Host      string
	Port      int
	LocalPort int
	Transport transport.Config
}

// New binds a UDP socket, wires a Transport to it, and returns a Peer
// identified by a freshly generated xid. Start must be called before any
// datagrams flow.
func New(role Role, cfg Config, cb Callbacks) (*Peer, error) {
	loop := eventloop.New()
	ep, err := udpendpoint.Bind(loop, udpendpoint.Config{LocalPort: cfg.LocalPort})
	if err != nil {
		return nil, err
	}

	cfg.Transport.Host = cfg.Host
	cfg.Transport.Port = cfg.Port

	id := xid.New().String()
	p := &Peer{
		id:        id,
		role:      role,
		log:       logger.WithPeer(logger.Logger(), string(role), id),
		loop:      loop,
		endpoint:  ep,
		transport: transport.New(loop, ep, cfg.Transport, cb),
	}
	return p, nil
}

// ID returns this peer's generated identity.
func (p *Peer) ID() string { return p.id }

// Role returns whether this is the controller or slave end of the link.
func (p *Peer) Role() Role { return p.role }

// Start runs the EventLoop in its own goroutine and starts the
// underlying Transport; ctx governs the lifetime of both.
func (p *Peer) Start(ctx context.Context) error {
	go p.loop.Run(ctx)
	if err := p.transport.Start(ctx); err != nil {
		return err
	}
	p.log.Info("peer started", "local_addr", p.endpoint.LocalAddr())
	return nil
}

// EnableAutoPing toggles the transport's repeating keepalive ping.
func (p *Peer) EnableAutoPing(enable bool) {
	p.log.Debug("auto ping toggled", "enabled", enable)
	p.transport.EnableAutoPing(enable)
}

// SendPing sends an immediate high-priority keepalive.
func (p *Peer) SendPing() { p.transport.SendPing() }

// SendVideo sends a video chunk tagged with the given stream index.
func (p *Peer) SendVideo(streamIndex uint8, payload []byte) {
	p.transport.SendVideo(streamIndex, payload)
}

// SendAudio sends an audio chunk.
func (p *Peer) SendAudio(payload []byte) { p.transport.SendAudio(payload) }

// SendDebug sends a human-readable debug line, truncated per the codec's limit.
func (p *Peer) SendDebug(text string) { p.transport.SendDebug(text) }

// SendValue sends a reliably-delivered named value.
func (p *Peer) SendValue(subtype message.Subtype, value uint16) {
	p.transport.SendValue(subtype, value)
}

// SendPeriodicValue sends a low-priority (not acknowledged, not resent)
// named value the caller intends to repeat on its own schedule.
func (p *Peer) SendPeriodicValue(subtype message.Subtype, value uint16) {
	p.transport.SendPeriodicValue(subtype, value)
}

// SendStats sends a batch of host/robot metric samples.
func (p *Peer) SendStats(samples []message.StatSample) {
	p.transport.SendStats(samples)
}

// ConnectionStatus reports the underlying transport's current liveness state.
func (p *Peer) ConnectionStatus() transport.ConnectionStatus {
	return p.transport.ConnectionStatus()
}

// ResendTimeoutMs reports the underlying transport's current adaptive
// resend timeout, useful for a dashboard or metrics exporter.
func (p *Peer) ResendTimeoutMs() int { return p.transport.ResendTimeoutMs() }

// LocalAddr returns the bound local UDP address.
func (p *Peer) LocalAddr() string { return p.endpoint.LocalAddr().String() }

// Close stops the transport and its EventLoop.
func (p *Peer) Close() error {
	p.log.Info("peer closing")
	err := p.transport.Close()
	p.loop.Stop()
	return err
}
