// Package relay implements the stateless UDP address-learning reflector
// named in spec.md §6: two listening sockets, one per role, each
// forwarding to the most recently observed address of the opposite
// role. It performs no payload inspection, no codec involvement, and
// holds no state beyond the two learned addresses.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/kulve/pleco-go/internal/logger"
)

// DefaultSlaveAddr and DefaultControllerAddr mirror the original
// netrelay.c's NETRELAY_CLIENT_STREAM_PORT (8500, slave-facing) and
// NETRELAY_SERVER_STREAM_PORT (12347, controller-facing) constants.
const (
	DefaultSlaveAddr      = ":8500"
	DefaultControllerAddr = ":12347"
)

const maxDatagramSize = 65536

// Relay forwards datagrams between whichever slave and controller last
// sent it one, learning each side's address from the source of its most
// recent inbound packet the way the original's sin_addr/sin_port pair
// did per recvfrom call.
type Relay struct {
	slaveConn      *net.UDPConn
	controllerConn *net.UDPConn
	log            *slog.Logger

	mu             sync.RWMutex
	slaveAddr      *net.UDPAddr
	controllerAddr *net.UDPAddr

	wg      sync.WaitGroup
	closing atomic.Bool

	forwardedToSlave      atomic.Uint64
	forwardedToController atomic.Uint64
}

// New binds both listening sockets. Either bind failing closes whichever
// socket already succeeded and returns the error.
func New(slaveAddr, controllerAddr string) (*Relay, error) {
	sAddr, err := net.ResolveUDPAddr("udp", slaveAddr)
	if err != nil {
		return nil, err
	}
	cAddr, err := net.ResolveUDPAddr("udp", controllerAddr)
	if err != nil {
		return nil, err
	}

	slaveConn, err := net.ListenUDP("udp", sAddr)
	if err != nil {
		return nil, err
	}
	controllerConn, err := net.ListenUDP("udp", cAddr)
	if err != nil {
		_ = slaveConn.Close()
		return nil, err
	}

	return &Relay{
		slaveConn:      slaveConn,
		controllerConn: controllerConn,
		log:            logger.Logger().With("component", "relay"),
	}, nil
}

// Start launches the two forwarding loops. Returns immediately; use
// Stop or cancel ctx to shut down.
func (r *Relay) Start(ctx context.Context) {
	r.log.Info("relay listening",
		"slave_addr", r.slaveConn.LocalAddr().String(),
		"controller_addr", r.controllerConn.LocalAddr().String(),
	)
	r.wg.Add(2)
	go r.forwardLoop(ctx, r.slaveConn, r.controllerConn, &r.slaveAddr, &r.controllerAddr, &r.forwardedToController, "slave->controller")
	go r.forwardLoop(ctx, r.controllerConn, r.slaveConn, &r.controllerAddr, &r.slaveAddr, &r.forwardedToSlave, "controller->slave")
}

// forwardLoop reads datagrams from src, remembers the sender's address
// in *fromAddr, and forwards the payload to whatever address is
// currently recorded in *toAddr (the opposite role's last-seen sender),
// if any.
func (r *Relay) forwardLoop(ctx context.Context, src, dst *net.UDPConn, fromAddr, toAddr **net.UDPAddr, counter *atomic.Uint64, direction string) {
	defer r.wg.Done()
	buf := make([]byte, maxDatagramSize)

	for {
		if r.closing.Load() {
			return
		}
		n, addr, err := src.ReadFromUDP(buf)
		if err != nil {
			if r.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.log.Warn("relay read error", "direction", direction, "error", err)
			continue
		}

		r.mu.Lock()
		*fromAddr = addr
		target := *toAddr
		r.mu.Unlock()

		if target == nil {
			r.log.Debug("no learned peer address yet, dropping datagram", "direction", direction)
			continue
		}

		if _, err := dst.WriteToUDP(buf[:n], target); err != nil {
			r.log.Warn("relay forward error", "direction", direction, "error", err)
			continue
		}
		counter.Add(1)
	}
}

// Stop closes both sockets and waits for the forwarding loops to exit.
func (r *Relay) Stop() {
	r.closing.Store(true)
	_ = r.slaveConn.Close()
	_ = r.controllerConn.Close()
	r.wg.Wait()
	r.log.Info("relay stopped",
		"forwarded_to_slave", r.forwardedToSlave.Load(),
		"forwarded_to_controller", r.forwardedToController.Load(),
	)
}

// SlaveAddr returns the bound slave-facing local address.
func (r *Relay) SlaveAddr() net.Addr { return r.slaveConn.LocalAddr() }

// ControllerAddr returns the bound controller-facing local address.
func (r *Relay) ControllerAddr() net.Addr { return r.controllerConn.LocalAddr() }

// LearnedSlaveAddr returns the most recently observed slave sender
// address, or nil if none has been seen yet.
func (r *Relay) LearnedSlaveAddr() *net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slaveAddr
}

// LearnedControllerAddr returns the most recently observed controller
// sender address, or nil if none has been seen yet.
func (r *Relay) LearnedControllerAddr() *net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controllerAddr
}
