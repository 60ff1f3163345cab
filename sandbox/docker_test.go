package sandbox

import (
	"strings"
	"testing"
)

func TestSyncBufferConcurrentWriteAndRead(t *testing.T) {
	var buf syncBuffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			buf.Write([]byte("chunk "))
		}
	}()

	// Reading mid-stream mirrors the exec timeout branch collecting
	// partial output while the copier is still attached.
	for i := 0; i < 200; i++ {
		s := buf.String()
		if len(s)%6 != 0 {
			t.Fatalf("torn read: %d bytes", len(s))
		}
	}
	<-done

	if got := buf.String(); got != strings.Repeat("chunk ", 1000) {
		t.Errorf("final buffer has %d bytes, want %d", len(got), 6000)
	}
}
