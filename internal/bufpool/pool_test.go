package bufpool

import "testing"

func TestPoolGetReturnsSizedBuffer(t *testing.T) {
	t.Parallel()
	p := New()

	tests := []struct {
		name        string
		requestSize int
		expectCap   int
	}{
		{name: "header only", requestSize: 6, expectCap: 64},
		{name: "exact class", requestSize: 64, expectCap: 64},
		{name: "mtu video", requestSize: 1200, expectCap: 1500},
		{name: "jumbo", requestSize: 40000, expectCap: 65536},
		{name: "oversized", requestSize: 131072, expectCap: 131072},
		{name: "zero", requestSize: 0, expectCap: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			buf := p.Get(tc.requestSize)
			if tc.requestSize == 0 {
				if len(buf) != 0 || cap(buf) != 0 {
					t.Fatalf("expected zero-length buffer, got len=%d cap=%d", len(buf), cap(buf))
				}
				return
			}
			if len(buf) != tc.requestSize {
				t.Fatalf("expected len=%d, got %d", tc.requestSize, len(buf))
			}
			if cap(buf) != tc.expectCap {
				t.Fatalf("expected cap=%d, got %d", tc.expectCap, cap(buf))
			}
		})
	}
}

func TestPoolPutThenGetReusesBuffer(t *testing.T) {
	p := New()
	buf := p.Get(10)
	buf[0] = 0xFF
	p.Put(buf)

	reused := p.Get(10)
	if reused[0] != 0 {
		t.Fatalf("expected reused buffer to be cleared, got %v", reused[0])
	}
}

func TestPoolNilReceiver(t *testing.T) {
	var p *Pool
	if got := p.Get(10); got != nil {
		t.Fatalf("expected nil from nil pool, got %v", got)
	}
	p.Put([]byte{1, 2, 3}) // must not panic
}

func TestPackageLevelHelpers(t *testing.T) {
	buf := Get(100)
	if len(buf) != 100 {
		t.Fatalf("expected len 100, got %d", len(buf))
	}
	Put(buf)
}
