// Package cliutil holds small helpers shared by the cmd/ binaries that
// don't belong in any single domain package.
package cliutil

import (
	"github.com/kulve/pleco-go/internal/message"
	"github.com/kulve/pleco-go/internal/transport"
)

// MergeCallbacks combines an application's own Callbacks with a second
// set (typically a metrics.Exporter's) so both observe every event; a
// nil slot in either input is simply skipped, and when both sides set
// the same slot the application's own callback runs before the extra
// one. This keeps cmd/ main functions from wiring metrics into the
// transport layer directly.
func MergeCallbacks(primary, extra transport.Callbacks) transport.Callbacks {
	return transport.Callbacks{
		OnRtt:              merge2(primary.OnRtt, extra.OnRtt),
		OnResendTimeout:    merge2(primary.OnResendTimeout, extra.OnResendTimeout),
		OnResentPackets:    merge2(primary.OnResentPackets, extra.OnResentPackets),
		OnVideo:            merge3(primary.OnVideo, extra.OnVideo),
		OnAudio:            merge2Bytes(primary.OnAudio, extra.OnAudio),
		OnDebug:            merge2String(primary.OnDebug, extra.OnDebug),
		OnValue:            merge2SubtypeValue(primary.OnValue, extra.OnValue),
		OnPeriodicValue:    merge2SubtypeValue(primary.OnPeriodicValue, extra.OnPeriodicValue),
		OnStats:            merge2Stats(primary.OnStats, extra.OnStats),
		OnNetworkRate:      merge4(primary.OnNetworkRate, extra.OnNetworkRate),
		OnConnectionStatus: merge2Status(primary.OnConnectionStatus, extra.OnConnectionStatus),
	}
}

func merge2(a, b func(int)) func(int) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v int) { a(v); b(v) }
}

func merge3(a, b func(uint8, []byte)) func(uint8, []byte) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(idx uint8, payload []byte) { a(idx, payload); b(idx, payload) }
}

func merge2Bytes(a, b func([]byte)) func([]byte) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(payload []byte) { a(payload); b(payload) }
}

func merge2String(a, b func(string)) func(string) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(s string) { a(s); b(s) }
}

func merge4(a, b func(int, int, int, int)) func(int, int, int, int) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(w, x, y, z int) { a(w, x, y, z); b(w, x, y, z) }
}

func merge2SubtypeValue(a, b func(message.Subtype, uint16)) func(message.Subtype, uint16) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(s message.Subtype, v uint16) { a(s, v); b(s, v) }
}

func merge2Stats(a, b func([]message.StatSample)) func([]message.StatSample) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(samples []message.StatSample) { a(samples); b(samples) }
}

func merge2Status(a, b func(transport.ConnectionStatus)) func(transport.ConnectionStatus) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(s transport.ConnectionStatus) { a(s); b(s) }
}
