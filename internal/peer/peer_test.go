package peer

import (
	"context"
	"testing"
	"time"

	"github.com/kulve/pleco-go/internal/message"
	"github.com/kulve/pleco-go/internal/transport"
)

func TestNewAssignsStableRoleAndID(t *testing.T) {
	p, err := New(RoleController, Config{Host: "127.0.0.1", Port: 1, LocalPort: 0}, Callbacks{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if p.Role() != RoleController {
		t.Fatalf("expected RoleController, got %s", p.Role())
	}
	if p.ID() == "" {
		t.Fatal("expected a non-empty generated peer id")
	}

	other, err := New(RoleSlave, Config{Host: "127.0.0.1", Port: 1, LocalPort: 0}, Callbacks{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = other.Close() })
	if other.ID() == p.ID() {
		t.Fatal("expected distinct peer ids across instances")
	}
}

// TestPeerLoopbackRoundTrip binds a single Peer whose remote address is
// its own socket, the same loopback pattern internal/transport's tests
// use, verifying the facade forwards Callbacks through to the wire codec
// without dropping or reordering a value delivery.
func TestPeerLoopbackRoundTrip(t *testing.T) {
	values := make(chan uint16, 1)

	p, err := New(RoleController, Config{Host: "127.0.0.1", LocalPort: 0}, Callbacks{
		OnValue: func(subtype message.Subtype, value uint16) {
			if subtype == message.SubtypeSpeedTurn {
				values <- value
			}
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	// Point the peer at its own bound socket after construction so every
	// datagram it sends loops straight back to it.
	p.transport = transport.New(p.loop, p.endpoint, transport.Config{
		Host: "127.0.0.1",
		Port: p.endpoint.LocalAddr().Port,
	}, Callbacks{
		OnValue: func(subtype message.Subtype, value uint16) {
			if subtype == message.SubtypeSpeedTurn {
				values <- value
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.SendValue(message.SubtypeSpeedTurn, 9)

	select {
	case v := <-values:
		if v != 9 {
			t.Fatalf("expected 9, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value round trip")
	}

	if p.ConnectionStatus() != transport.StatusOk {
		t.Fatalf("expected StatusOk after a successful round trip, got %s", p.ConnectionStatus())
	}
	if p.ResendTimeoutMs() <= 0 {
		t.Fatal("expected a positive resend timeout")
	}
}

func TestEnableAutoPingDoesNotPanicBeforeStart(t *testing.T) {
	p, err := New(RoleController, Config{Host: "127.0.0.1", Port: 1, LocalPort: 0}, Callbacks{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	p.EnableAutoPing(true)
	p.EnableAutoPing(false)
}

func TestLocalAddrReflectsBoundSocket(t *testing.T) {
	p, err := New(RoleSlave, Config{Host: "127.0.0.1", Port: 1, LocalPort: 0}, Callbacks{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if p.LocalAddr() == "" {
		t.Fatal("expected a non-empty local address")
	}
}
