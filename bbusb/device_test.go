package bbusb

import (
	"bytes"
	"testing"
)

func TestCompactPackets(t *testing.T) {
	tests := []struct {
		name      string
		src       []byte
		maxPacket int
		dstLen    int
		want      []byte
	}{
		{
			name:      "single packet strips status header",
			src:       []byte{0x01, 0x60, 'a', 'b', 'c'},
			maxPacket: 64,
			dstLen:    3,
			want:      []byte{'a', 'b', 'c'},
		},
		{
			name:      "two full packets",
			src:       []byte{0x01, 0x60, 'a', 'b', 0x01, 0x60, 'c', 'd'},
			maxPacket: 4,
			dstLen:    4,
			want:      []byte{'a', 'b', 'c', 'd'},
		},
		{
			name:      "trailing status-only chunk ignored",
			src:       []byte{0x01, 0x60, 'a', 'b', 0x01, 0x60},
			maxPacket: 4,
			dstLen:    4,
			want:      []byte{'a', 'b'},
		},
		{
			name:      "dst smaller than payload",
			src:       []byte{0x01, 0x60, 'a', 'b', 'c', 'd'},
			maxPacket: 64,
			dstLen:    2,
			want:      []byte{'a', 'b'},
		},
		{
			name:      "empty source",
			src:       nil,
			maxPacket: 64,
			dstLen:    4,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.dstLen)
			n := compactPackets(dst, tt.src, tt.maxPacket)
			if n != len(tt.want) {
				t.Fatalf("compactPackets() = %d bytes, want %d", n, len(tt.want))
			}
			if !bytes.Equal(dst[:n], tt.want) {
				t.Errorf("payload = %q, want %q", dst[:n], tt.want)
			}
		})
	}
}

func TestRoundUpToMaxPacket(t *testing.T) {
	tests := []struct {
		n, max, want int
	}{
		{4, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{4, 0, 4},
	}
	for _, tt := range tests {
		if got := roundUpToMaxPacket(tt.n, tt.max); got != tt.want {
			t.Errorf("roundUpToMaxPacket(%d, %d) = %d, want %d", tt.n, tt.max, got, tt.want)
		}
	}
}

func TestHandleReleaseDoesNotCloseSession(t *testing.T) {
	s := &Session{} // no hardware; only the borrow bookkeeping is exercised
	open := s.Opener()
	h, err := open()
	if err != nil {
		t.Fatalf("Opener() unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if _, err := h.Uint32(); err == nil {
		t.Error("Uint32() after release should error")
	}
	// The session survives a handle release.
	if s.dev != nil || s.ctx != nil {
		t.Error("session state changed by handle release")
	}
	h2, err := open()
	if err != nil {
		t.Fatalf("second Opener() call unexpected error: %v", err)
	}
	_ = h2.Close()
}
