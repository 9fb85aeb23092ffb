package transport

import "github.com/kulve/pleco-go/internal/message"

// Callbacks are the application's hooks into a Transport. Every field is
// optional; a nil field simply means that signal is dropped.
type Callbacks struct {
	OnRtt              func(ms int)
	OnResendTimeout    func(ms int)
	OnResentPackets    func(resendCounter uint32)
	OnVideo            func(streamIndex uint8, payload []byte)
	OnAudio            func(payload []byte)
	OnDebug            func(text string)
	OnValue            func(subtype message.Subtype, value uint16)
	OnPeriodicValue    func(subtype message.Subtype, value uint16)
	OnStats            func(samples []message.StatSample)
	OnNetworkRate      func(payloadRx, totalRx, payloadTx, totalTx int)
	OnConnectionStatus func(status ConnectionStatus)
}
