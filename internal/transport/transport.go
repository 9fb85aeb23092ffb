// Package transport implements the reliable-datagram engine sitting
// between udpendpoint's raw socket and the peer-facing API: per-FullType
// resend slots, round-trip sampling, AIMD resend-timeout adaptation, the
// three-state connection-status machine, and 1-second rate accounting.
//
// A Transport is confined to a single eventloop.EventLoop. Every public
// Send* method, and every inbound datagram handler, runs as a thunk on
// that loop, so the maps and counters below are never touched by two
// goroutines at once and need no locking.
package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/kulve/pleco-go/internal/eventloop"
	"github.com/kulve/pleco-go/internal/evtimer"
	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/message"
	"github.com/kulve/pleco-go/internal/udpendpoint"
)

// Transport drives one reliable-datagram conversation with a single
// remote peer over one bound UDP socket.
type Transport struct {
	loop *eventloop.EventLoop
	ep   *udpendpoint.Endpoint
	seqs *message.SequenceTable
	cfg  Config
	cb   Callbacks
	log  *slog.Logger

	resendTimeoutMs  int
	resendCounter    uint32
	connectionStatus ConnectionStatus

	resendTimers   map[message.FullType]*evtimer.Timer
	resendMessages map[message.FullType]*message.Message
	rtStart        map[message.FullType]time.Time

	connectionTimeoutTimer *evtimer.Timer
	autoPingTimer          *evtimer.Timer
	rateTimer              *evtimer.Timer

	payloadSent, totalSent int
	payloadRecv, totalRecv int
	rateTime               time.Time
}

// New constructs a Transport bound to loop and communicating over ep. The
// caller must still call Start to begin resolving the remote address,
// receiving, and running the rate timer.
func New(loop *eventloop.EventLoop, ep *udpendpoint.Endpoint, cfg Config, cb Callbacks) *Transport {
	t := &Transport{
		loop:             loop,
		ep:               ep,
		seqs:             message.NewSequenceTable(),
		cfg:              cfg,
		cb:               cb,
		log:              logger.Logger(),
		resendTimeoutMs:  cfg.resendTimeoutDefault(),
		connectionStatus: StatusLost,
		resendTimers:     make(map[message.FullType]*evtimer.Timer),
		resendMessages:   make(map[message.FullType]*message.Message),
		rtStart:          make(map[message.FullType]time.Time),
	}
	return t
}

// Start resolves the remote endpoint, begins receiving datagrams, and
// starts the 1-second rate-accounting timer. ctx governs the lifetime of
// the endpoint's receive loop.
func (t *Transport) Start(ctx context.Context) error {
	if err := t.ep.SetRemote(t.cfg.Host, t.cfg.Port); err != nil {
		return err
	}
	t.ep.OnReceive(func(payload []byte, from *net.UDPAddr) {
		t.handleDatagram(payload, from)
	})
	t.ep.Start(ctx)

	t.rateTime = time.Now()
	t.rateTimer = evtimer.New(t.loop)
	t.rateTimer.Start(time.Second, t.updateRate, true)
	return nil
}

// EnableAutoPing toggles a repeating 1-second ping, the conventional way
// to keep a NAT binding and the peer's connection-timeout timer alive
// when the application has nothing else to send.
func (t *Transport) EnableAutoPing(enable bool) {
	t.loop.Post(func() {
		if !enable {
			if t.autoPingTimer != nil {
				t.autoPingTimer.Stop()
				t.autoPingTimer = nil
			}
			return
		}
		if t.autoPingTimer != nil {
			return
		}
		t.autoPingTimer = evtimer.New(t.loop)
		t.autoPingTimer.Start(time.Second, func() { t.sendPing() }, true)
	})
}

// ResendTimeoutMs returns the transport's current adaptive resend
// timeout. Exposed for tests and metrics; not part of the wire protocol.
func (t *Transport) ResendTimeoutMs() int { return t.resendTimeoutMs }

// ConnectionStatus returns the transport's current connection status.
func (t *Transport) ConnectionStatus() ConnectionStatus { return t.connectionStatus }

// SendPing sends a high-priority keepalive carrying no payload.
func (t *Transport) SendPing() {
	t.loop.Post(func() { t.sendPing() })
}

func (t *Transport) sendPing() {
	t.sendMessage(message.NewPing(t.seqs), false)
}

// SendVideo sends a low-priority video chunk tagged with streamIndex.
func (t *Transport) SendVideo(streamIndex uint8, payload []byte) {
	t.loop.Post(func() {
		t.sendMessage(message.NewVideo(t.seqs, streamIndex, payload), false)
	})
}

// SendAudio sends a low-priority audio chunk.
func (t *Transport) SendAudio(payload []byte) {
	t.loop.Post(func() {
		t.sendMessage(message.NewAudio(t.seqs, payload), false)
	})
}

// SendDebug sends a low-priority human-readable debug line, truncated to
// message.DebugMaxLen bytes.
func (t *Transport) SendDebug(text string) {
	t.loop.Post(func() {
		t.sendMessage(message.NewDebug(t.seqs, text), false)
	})
}

// SendValue sends a high-priority, reliably-delivered named value.
func (t *Transport) SendValue(subtype message.Subtype, value uint16) {
	t.loop.Post(func() {
		t.sendMessage(message.NewValue(t.seqs, subtype, value), false)
	})
}

// SendPeriodicValue sends a low-priority (fire-and-forget) named value
// that the sender intends to repeat on its own cadence (e.g. a sensor
// reading).
func (t *Transport) SendPeriodicValue(subtype message.Subtype, value uint16) {
	t.loop.Post(func() {
		t.sendMessage(message.NewPeriodicValue(t.seqs, subtype, value), false)
	})
}

// SendStats sends a low-priority batch of (subtype,value) samples.
func (t *Transport) SendStats(samples []message.StatSample) {
	t.loop.Post(func() {
		t.sendMessage(message.NewStats(t.seqs, samples), false)
	})
}

// sendMessage is the single outbound pipeline every Send* verb and every
// resend funnels through. isResend distinguishes a fresh logical send
// (which (re)establishes the RTT sample window) from a retransmission of
// an already-pending message (which must not reset that window — see
// DESIGN.md's Open Question resolution 1 on rt_start).
func (t *Transport) sendMessage(msg *message.Message, isResend bool) {
	if err := t.ep.Send(context.Background(), msg.Bytes()); err != nil {
		t.log.Warn("transport: send failed", "type", msg.Type(), "error", err)
		// A failed high-priority frame still takes its resend slot below,
		// so its resend timer tries again; a low-priority frame is lost.
		if !msg.IsHighPriority() {
			return
		}
	} else {
		n := msg.Len()
		t.payloadSent += n
		t.totalSent += n + 28 // UDP + IPv4 headers

		if t.autoPingTimer != nil && (msg.IsHighPriority() || msg.Type() == message.TypeAck) && msg.Type() != message.TypePing {
			t.autoPingTimer.Start(time.Second, func() { t.sendPing() }, true)
		}
	}

	if !msg.IsHighPriority() {
		return
	}

	ft := msg.FullType()
	t.startConnectionTimeout()
	t.resendMessages[ft] = msg
	t.startResendTimer(ft)

	if !isResend {
		t.rtStart[ft] = time.Now()
	}
}

func (t *Transport) resendMessage(ft message.FullType) {
	msg, ok := t.resendMessages[ft]
	if !ok {
		t.log.Warn("transport: no message to resend", "full_type", ft)
		return
	}

	t.resendCounter++
	if t.cb.OnResentPackets != nil {
		t.cb.OnResentPackets(t.resendCounter)
	}

	if t.connectionStatus == StatusOk {
		t.setConnectionStatus(StatusRetrying)
	}

	t.sendMessage(msg, true)
}

func (t *Transport) startResendTimer(ft message.FullType) {
	timer, ok := t.resendTimers[ft]
	if !ok {
		timer = evtimer.New(t.loop)
		t.resendTimers[ft] = timer
	}
	timer.Start(time.Duration(t.resendTimeoutMs)*time.Millisecond, func() {
		t.resendMessage(ft)
	}, false)
}

// startConnectionTimeout arms the connection-timeout deadline relative to
// the first high-priority send since the last inbound datagram, per
// spec.md's Connection timeout section. It deliberately does NOT restart
// an already-running timer: since a resend also routes through here, a
// restart-on-every-send policy would push the deadline out forever as
// long as resends keep firing every resend_timeout_ms, and the
// connection could never be declared Lost. handleDatagram stops this
// timer on every inbound datagram, which is what re-arms it on the next
// outbound HP send.
func (t *Transport) startConnectionTimeout() {
	if t.connectionTimeoutTimer == nil {
		t.connectionTimeoutTimer = evtimer.New(t.loop)
	}
	if t.connectionTimeoutTimer.Active() {
		return
	}
	timeoutMs := 4 * t.resendTimeoutMs
	if t.cfg.MinConnectionTimeoutMs > 0 && timeoutMs < t.cfg.MinConnectionTimeoutMs {
		timeoutMs = t.cfg.MinConnectionTimeoutMs
	}
	t.connectionTimeoutTimer.Start(time.Duration(timeoutMs)*time.Millisecond, t.onConnectionTimeout, false)
}

func (t *Transport) onConnectionTimeout() {
	t.log.Debug("transport: connection timeout")
	t.resendTimeoutMs = t.cfg.resendTimeoutDefault()
	t.setConnectionStatus(StatusLost)
}

func (t *Transport) setConnectionStatus(s ConnectionStatus) {
	if t.connectionStatus == s {
		return
	}
	t.connectionStatus = s
	if t.cb.OnConnectionStatus != nil {
		t.cb.OnConnectionStatus(s)
	}
}

func (t *Transport) sendAck(incoming *message.Message) {
	t.sendMessage(message.BuildAck(t.seqs, incoming), false)
}

// handleDatagram is posted to the loop by udpendpoint for every inbound
// read; it runs on the loop goroutine like everything else here.
func (t *Transport) handleDatagram(payload []byte, from *net.UDPAddr) {
	t.payloadRecv += len(payload)
	t.totalRecv += len(payload) + 28

	msg, err := message.Decode(payload)
	if err != nil {
		t.log.Debug("transport: dropping invalid datagram", "from", from, "error", err)
		return
	}

	t.setConnectionStatus(StatusOk)
	if t.connectionTimeoutTimer != nil {
		t.connectionTimeoutTimer.Stop()
	}

	if msg.IsHighPriority() {
		t.sendAck(msg)
	}

	switch msg.Type() {
	case message.TypeAck:
		t.handleAck(msg)
	case message.TypePing:
		// ACKing is the entire protocol contribution of a ping.
	case message.TypeVideo:
		if t.cb.OnVideo != nil {
			t.cb.OnVideo(uint8(msg.Subtype()), msg.Payload())
		}
	case message.TypeAudio:
		if t.cb.OnAudio != nil {
			t.cb.OnAudio(msg.Payload())
		}
	case message.TypeDebug:
		if t.cb.OnDebug != nil {
			t.cb.OnDebug(decodeDebugText(msg.Payload(), t.cfg.DebugMode))
		}
	case message.TypeValue:
		if t.cb.OnValue != nil {
			t.cb.OnValue(msg.Subtype(), msg.Payload16())
		}
	case message.TypePeriodicValue:
		if t.cb.OnPeriodicValue != nil {
			t.cb.OnPeriodicValue(msg.Subtype(), msg.Payload16())
		}
	case message.TypeStats:
		if t.cb.OnStats != nil {
			t.cb.OnStats(message.DecodeStats(msg.Payload()))
		}
	default:
		t.log.Debug("transport: no handler for message type", "type", msg.Type())
	}
}

func (t *Transport) handleAck(msg *message.Message) {
	ackedFT := msg.AckedFullType()
	ackedCRC := msg.AckedCRC()

	pending, havePending := t.resendMessages[ackedFT]
	if havePending && !pending.MatchCRC(ackedCRC) {
		// Stale ACK: acknowledges a superseded copy of this FullType's
		// pending message. Restart the resend timer so we don't keep
		// hammering the wire while still waiting for the real ACK, but
		// take no RTT sample and do not clear the pending state.
		if timer, ok := t.resendTimers[ackedFT]; ok {
			timer.Start(time.Duration(t.resendTimeoutMs)*time.Millisecond, func() {
				t.resendMessage(ackedFT)
			}, false)
		}
		t.log.Debug("transport: stale ack CRC", "full_type", ackedFT)
		return
	}

	if timer, ok := t.resendTimers[ackedFT]; ok {
		timer.Stop()
		delete(t.resendTimers, ackedFT)
	} else {
		t.log.Warn("transport: ack with no resend timer running", "full_type", ackedFT)
	}

	if start, ok := t.rtStart[ackedFT]; ok {
		rttMs := int(time.Since(start).Milliseconds())
		if t.cb.OnRtt != nil {
			t.cb.OnRtt(rttMs)
		}
		t.adjustResendTimeout(rttMs)
		delete(t.rtStart, ackedFT)
	} else {
		t.log.Warn("transport: ack with no rtt sample pending", "full_type", ackedFT)
	}

	delete(t.resendMessages, ackedFT)
}

// adjustResendTimeout implements the AIMD-style adaptation from the
// original: shrink by 10% when round trips are comfortably faster than
// the current timeout, jump to 2x RTT when they are not, floored at 20ms.
func (t *Transport) adjustResendTimeout(rttMs int) {
	if 2*rttMs < t.resendTimeoutMs {
		t.resendTimeoutMs -= int(0.1 * float64(t.resendTimeoutMs))
	} else {
		t.resendTimeoutMs = 2 * rttMs
	}
	if t.resendTimeoutMs < 20 {
		t.resendTimeoutMs = 20
	}
	if t.cb.OnResendTimeout != nil {
		t.cb.OnResendTimeout(t.resendTimeoutMs)
	}
}

func (t *Transport) updateRate() {
	now := time.Now()
	elapsedMs := now.Sub(t.rateTime).Milliseconds()
	t.rateTime = now
	if elapsedMs == 0 {
		return
	}

	payloadRx := int(float64(t.payloadRecv) * 1000.0 / float64(elapsedMs))
	t.payloadRecv = 0
	totalRx := int(float64(t.totalRecv) * 1000.0 / float64(elapsedMs))
	t.totalRecv = 0

	payloadTx := int(float64(t.payloadSent) * 1000.0 / float64(elapsedMs))
	t.payloadSent = 0
	totalTx := int(float64(t.totalSent) * 1000.0 / float64(elapsedMs))
	t.totalSent = 0

	if t.cb.OnNetworkRate != nil {
		t.cb.OnNetworkRate(payloadRx, totalRx, payloadTx, totalTx)
	}
}

// Close tears down every timer the Transport owns and closes its socket.
// If the owning EventLoop has already stopped, the timer teardown is
// skipped (Stop on an abandoned Timer only matters for resource hygiene
// the loop's own shutdown already provides) and only the socket is closed.
func (t *Transport) Close() error {
	if !t.loop.Stopped() {
		done := make(chan struct{})
		t.loop.Post(func() {
			defer close(done)
			if t.connectionTimeoutTimer != nil {
				t.connectionTimeoutTimer.Stop()
			}
			if t.autoPingTimer != nil {
				t.autoPingTimer.Stop()
			}
			if t.rateTimer != nil {
				t.rateTimer.Stop()
			}
			for _, timer := range t.resendTimers {
				timer.Stop()
			}
			t.resendTimers = make(map[message.FullType]*evtimer.Timer)
			t.resendMessages = make(map[message.FullType]*message.Message)
			t.rtStart = make(map[message.FullType]time.Time)
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			t.log.Warn("transport: close timed out waiting for event loop")
		}
	}
	return t.ep.Close()
}
