package transport

import (
	"context"
	"testing"
	"time"

	"github.com/kulve/pleco-go/internal/eventloop"
	"github.com/kulve/pleco-go/internal/evtimer"
	"github.com/kulve/pleco-go/internal/message"
	"github.com/kulve/pleco-go/internal/udpendpoint"
)

func runLoop(t *testing.T) *eventloop.EventLoop {
	t.Helper()
	l := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l
}

// loopbackTransport builds a Transport whose remote address is its own
// bound socket: every sent datagram is delivered straight back to it,
// making it possible to exercise the full send -> receive -> ack ->
// sample pipeline without a second process.
func loopbackTransport(t *testing.T, cfg Config, cb Callbacks) *Transport {
	t.Helper()
	loop := runLoop(t)
	ep, err := udpendpoint.Bind(loop, udpendpoint.Config{LocalPort: 0})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	cfg.Host = "127.0.0.1"
	cfg.Port = ep.LocalAddr().Port
	tr := New(loop, ep, cfg, cb)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// silentPeerTransport builds a Transport that talks to a second, bound
// but never-read UDP socket: every high-priority frame it sends goes
// unacknowledged, so resend and connection-timeout behavior can be
// observed deterministically.
func silentPeerTransport(t *testing.T, cfg Config, cb Callbacks) *Transport {
	t.Helper()
	loop := runLoop(t)
	ep, err := udpendpoint.Bind(loop, udpendpoint.Config{LocalPort: 0})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	silent, err := udpendpoint.Bind(runLoop(t), udpendpoint.Config{LocalPort: 0})
	if err != nil {
		t.Fatalf("bind silent: %v", err)
	}
	t.Cleanup(func() { _ = silent.Close() })

	cfg.Host = "127.0.0.1"
	cfg.Port = silent.LocalAddr().Port
	tr := New(loop, ep, cfg, cb)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestPingRoundTripProducesRttAndOkStatus(t *testing.T) {
	rtt := make(chan int, 1)
	status := make(chan ConnectionStatus, 4)
	tr := loopbackTransport(t, Config{}, Callbacks{
		OnRtt:              func(ms int) { rtt <- ms },
		OnConnectionStatus: func(s ConnectionStatus) { status <- s },
	})

	tr.SendPing()

	select {
	case <-rtt:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rtt sample")
	}

	select {
	case s := <-status:
		if s != StatusOk {
			t.Fatalf("expected StatusOk, got %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connection status")
	}
}

func TestValueRoundTripDeliversCallbackAndAcks(t *testing.T) {
	values := make(chan uint16, 1)
	tr := loopbackTransport(t, Config{}, Callbacks{
		OnValue: func(subtype message.Subtype, value uint16) {
			if subtype == message.SubtypeSpeedTurn {
				values <- value
			}
		},
	})

	tr.SendValue(message.SubtypeSpeedTurn, 42)

	select {
	case v := <-values:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value callback")
	}
}

func TestDebugRoundTripDecodesText(t *testing.T) {
	texts := make(chan string, 1)
	tr := loopbackTransport(t, Config{}, Callbacks{
		OnDebug: func(text string) { texts <- text },
	})

	tr.SendDebug("hello from a test")

	select {
	case got := <-texts:
		if got != "hello from a test" {
			t.Fatalf("expected exact debug text, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debug callback")
	}
}

func TestUnackedHighPriorityFrameIsResent(t *testing.T) {
	resent := make(chan uint32, 8)
	tr := silentPeerTransport(t, Config{ResendTimeoutDefaultMs: 20}, Callbacks{
		OnResentPackets: func(n uint32) { resent <- n },
	})

	tr.SendValue(message.SubtypeDistance, 7)

	select {
	case n := <-resent:
		if n != 1 {
			t.Fatalf("expected first resend counter to be 1, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first resend")
	}
}

// TestResendWhileOkTransitionsToRetrying exercises spec.md §8's rule that
// a resend only demotes the connection status when it fires while the
// status is currently Ok; a transport that has never heard from its peer
// (status Lost from construction) does not bounce through Retrying.
func TestResendWhileOkTransitionsToRetrying(t *testing.T) {
	statuses := make(chan ConnectionStatus, 8)
	tr := silentPeerTransport(t, Config{ResendTimeoutDefaultMs: 20}, Callbacks{
		OnConnectionStatus: func(s ConnectionStatus) { statuses <- s },
	})

	done := make(chan struct{})
	tr.loop.Post(func() {
		tr.connectionStatus = StatusOk
		close(done)
	})
	<-done

	tr.SendValue(message.SubtypeDistance, 7)

	select {
	case s := <-statuses:
		if s != StatusRetrying {
			t.Fatalf("expected StatusRetrying once a resend fires from Ok, got %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for retrying status")
	}
}

func TestConnectionTimeoutTransitionsToLostAndResetsTimeout(t *testing.T) {
	statuses := make(chan ConnectionStatus, 8)
	tr := silentPeerTransport(t, Config{ResendTimeoutDefaultMs: 15}, Callbacks{
		OnConnectionStatus: func(s ConnectionStatus) { statuses <- s },
	})

	// Seed status as Ok so the Lost transition below is observable: a
	// transport that starts Lost (the default) and never hears from its
	// peer stays Lost without ever firing the callback again.
	done := make(chan struct{})
	tr.loop.Post(func() {
		tr.connectionStatus = StatusOk
		close(done)
	})
	<-done

	tr.SendValue(message.SubtypeDistance, 7)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-statuses:
			if s == StatusLost {
				if got := tr.ResendTimeoutMs(); got != 15 {
					t.Fatalf("expected resend timeout reset to configured default 15, got %d", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for connection loss")
		}
	}
}

func TestStaleAckDoesNotClearPendingOrSampleRtt(t *testing.T) {
	loop := runLoop(t)
	ep, err := udpendpoint.Bind(loop, udpendpoint.Config{LocalPort: 0})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	t.Cleanup(func() { _ = ep.Close() })
	rtt := make(chan int, 1)
	tr := New(loop, ep, Config{Host: "127.0.0.1", Port: 1}, Callbacks{
		OnRtt: func(ms int) { rtt <- ms },
	})

	done := make(chan struct{})
	loop.Post(func() {
		msg := message.NewValue(tr.seqs, message.SubtypeDistance, 1)
		tr.resendMessages[msg.FullType()] = msg
		tr.rtStart[msg.FullType()] = time.Now()
		tr.resendTimers[msg.FullType()] = evtimer.New(loop)

		// Build an ack whose embedded CRC does not match the pending message.
		fake := message.NewValue(message.NewSequenceTable(), message.SubtypeDistance, 999)
		ack := message.BuildAck(message.NewSequenceTable(), fake)
		tr.handleAck(ack)

		if _, stillPending := tr.resendMessages[msg.FullType()]; !stillPending {
			t.Errorf("expected pending message to survive a stale ack")
		}
		if _, stillWaiting := tr.rtStart[msg.FullType()]; !stillWaiting {
			t.Errorf("expected rtStart to survive a stale ack")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out running assertion on loop")
	}

	select {
	case <-rtt:
		t.Fatal("expected no rtt sample from a stale ack")
	case <-time.After(50 * time.Millisecond):
	}
}
