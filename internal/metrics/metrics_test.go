package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kulve/pleco-go/internal/transport"
)

func TestCallbacksUpdateExpectedMetrics(t *testing.T) {
	e := New("controller", "test-peer")
	cb := e.Callbacks()

	cb.OnRtt(42)
	cb.OnResendTimeout(250)
	cb.OnResentPackets(1)
	cb.OnResentPackets(2)
	cb.OnNetworkRate(100, 130, 50, 70)
	cb.OnConnectionStatus(transport.StatusOk)

	if got := testutil.ToFloat64(e.resendTimeoutMs); got != 250 {
		t.Fatalf("expected resend timeout gauge 250, got %v", got)
	}
	if got := testutil.ToFloat64(e.resentPackets); got != 2 {
		t.Fatalf("expected resent packets counter 2, got %v", got)
	}
	if got := testutil.ToFloat64(e.networkRateRx); got != 100 {
		t.Fatalf("expected rx rate gauge 100, got %v", got)
	}
	if got := testutil.ToFloat64(e.networkRateTx); got != 50 {
		t.Fatalf("expected tx rate gauge 50, got %v", got)
	}
	if got := testutil.ToFloat64(e.connectionStatus); got != float64(transport.StatusOk) {
		t.Fatalf("expected connection status gauge %v, got %v", transport.StatusOk, got)
	}
}

func TestHandlerServesRegisteredMetricNames(t *testing.T) {
	e := New("slave", "abc123")
	cb := e.Callbacks()
	cb.OnRtt(5)
	cb.OnConnectionStatus(transport.StatusRetrying)

	body, err := testutil.GatherAndCount(e.registry)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if body == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	metrics, err := e.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var names []string
	for _, mf := range metrics {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"pleco_rtt_milliseconds", "pleco_connection_status"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected metric %q among %v", want, names)
		}
	}
}
