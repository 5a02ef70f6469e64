package telemetrylog

import (
	"bytes"
	"testing"
)

func TestByteRingDropsOldestWhenFull(t *testing.T) {
	r := &ByteRing{}
	for i := 0; i < ByteRingCapacity+4; i++ {
		r.Write(byte(i))
	}
	if r.Len() != ByteRingCapacity {
		t.Fatalf("expected ring pinned at capacity %d, got %d", ByteRingCapacity, r.Len())
	}
	out := r.Drain()
	if out[0] != byte(4) {
		t.Fatalf("expected oldest surviving byte to be 4, got %d", out[0])
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after drain, got %d", r.Len())
	}
}

func TestByteRingDrainPreservesOrder(t *testing.T) {
	r := &ByteRing{}
	r.WriteString("hello")
	if got := r.Drain(); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestEventLogOverwritesOldest(t *testing.T) {
	l := &EventLog{}
	for i := 0; i < EventRingCapacity+1; i++ {
		l.Record(uint32(i), Info, 0, uint16(i), "evt")
	}
	if l.Count() != EventRingCapacity {
		t.Fatalf("expected count pinned at %d, got %d", EventRingCapacity, l.Count())
	}
	entries := l.Snapshot()
	if entries[0].EventID != 1 {
		t.Fatalf("expected oldest surviving event id 1, got %d", entries[0].EventID)
	}
	if entries[len(entries)-1].EventID != EventRingCapacity {
		t.Fatalf("expected newest event id %d, got %d", EventRingCapacity, entries[len(entries)-1].EventID)
	}
}

func TestEventLogTruncatesLongMessage(t *testing.T) {
	l := &EventLog{}
	long := make([]byte, MaxMessageLen*2)
	for i := range long {
		long[i] = 'a'
	}
	l.Record(0, Warning, 0, 1, string(long))
	got := l.Snapshot()[0]
	if int(got.MessageLen) != MaxMessageLen {
		t.Fatalf("expected message truncated to %d, got %d", MaxMessageLen, got.MessageLen)
	}
	if got.MessageString() != string(long[:MaxMessageLen]) {
		t.Fatalf("truncated message content mismatch")
	}
}
