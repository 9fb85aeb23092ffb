package cliutil

import (
	"testing"

	"github.com/kulve/pleco-go/internal/transport"
)

func TestMergeCallbacksInvokesBothSides(t *testing.T) {
	var primaryCalled, extraCalled bool

	merged := MergeCallbacks(
		transport.Callbacks{OnRtt: func(ms int) { primaryCalled = true }},
		transport.Callbacks{OnRtt: func(ms int) { extraCalled = true }},
	)

	merged.OnRtt(5)

	if !primaryCalled || !extraCalled {
		t.Fatalf("expected both callbacks invoked, primary=%v extra=%v", primaryCalled, extraCalled)
	}
}

func TestMergeCallbacksHandlesOneSidedNil(t *testing.T) {
	var called bool
	merged := MergeCallbacks(
		transport.Callbacks{OnResentPackets: func(n uint32) { called = true }},
		transport.Callbacks{},
	)
	merged.OnResentPackets(1)
	if !called {
		t.Fatal("expected the sole registered callback to fire")
	}

	merged2 := MergeCallbacks(transport.Callbacks{}, transport.Callbacks{})
	if merged2.OnResentPackets != nil {
		t.Fatal("expected nil when neither side registers a callback")
	}
}
