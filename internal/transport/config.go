package transport

import "strings"

// ResendTimeoutDefaultMs is the resend timeout a fresh Transport starts
// with and the value a connection timeout resets it back to.
const ResendTimeoutDefaultMs = 1000

// DebugTextMode selects how a received Debug payload's raw bytes are
// turned into a string before reaching Callbacks.OnDebug. spec.md leaves
// this unspecified (Open Question); SPEC_FULL.md resolves it as a
// configurable policy rather than a fixed choice.
type DebugTextMode int

const (
	// DebugLossyUTF8 replaces invalid UTF-8 sequences with the Unicode
	// replacement character. This is the default: debug text is meant
	// for human logs, and a malformed sequence should not panic or
	// corrupt the rest of the line.
	DebugLossyUTF8 DebugTextMode = iota
	// DebugRawBytes performs a direct byte-to-string conversion with no
	// validation, for callers that want the exact bytes even if they are
	// not valid UTF-8 (e.g. forwarding to a binary-safe log sink).
	DebugRawBytes
)

// Config configures a Transport's timing and policy knobs. The zero value
// is usable: it resolves to the spec-exact behavior (no connection-timeout
// floor, lossy UTF-8 debug decoding, default resend timeout).
type Config struct {
	// Host and Port identify the remote peer this Transport talks to.
	Host string
	Port int

	// ResendTimeoutDefaultMs overrides ResendTimeoutDefaultMs when non-zero.
	ResendTimeoutDefaultMs int

	// MinConnectionTimeoutMs, when non-zero, floors the connection
	// timeout (normally 4x the current resend timeout) so a transport
	// that has driven its resend timeout very low via AIMD does not
	// flap to Lost on a single delayed datagram. spec.md's Design Notes
	// flag this as a FIXME in the original and leave it unresolved; the
	// zero value preserves the original's exact 4x-resendTimeoutMs
	// behavior with no floor.
	MinConnectionTimeoutMs int

	// DebugMode selects how Debug payload bytes become Callbacks.OnDebug's
	// string argument.
	DebugMode DebugTextMode
}

func (c Config) resendTimeoutDefault() int {
	if c.ResendTimeoutDefaultMs > 0 {
		return c.ResendTimeoutDefaultMs
	}
	return ResendTimeoutDefaultMs
}

func decodeDebugText(payload []byte, mode DebugTextMode) string {
	if mode == DebugRawBytes {
		return string(payload)
	}
	return strings.ToValidUTF8(string(payload), "�")
}
