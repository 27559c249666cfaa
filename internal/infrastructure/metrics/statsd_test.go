package metrics

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestStatsdCountReachesAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	m, err := NewStatsd(conn.LocalAddr().String(), "feedingestor.", nil)
	if err != nil {
		t.Fatalf("NewStatsd returned error: %v", err)
	}
	m.Count("items.created", 3, "job_type:perplexity")
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	buf := make([]byte, 1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}

	got := string(buf[:n])
	if !strings.Contains(got, "feedingestor.items.created:3|c") {
		t.Fatalf("unexpected packet %q", got)
	}
	if !strings.Contains(got, "job_type:perplexity") {
		t.Fatalf("missing tag in %q", got)
	}
}

func TestNopCount(t *testing.T) {
	t.Parallel()

	Nop{}.Count("anything", 1)
}
