package uci

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestExecTransportEchoProcess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	tr, err := NewExecTransport("cat")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err := tr.Send("uci"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tr.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if line != "uci" {
		t.Fatalf("echoed line = %q", line)
	}
}

func TestExecTransportCloseIdempotent(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	tr, err := NewExecTransport("cat")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send("quit"); err == nil {
		t.Fatal("send on a closed transport must fail")
	}
}

func TestExecTransportMissingBinary(t *testing.T) {
	if _, err := NewExecTransport("/nonexistent/engine-binary"); err == nil {
		t.Fatal("expected spawn failure")
	}
}

func TestExecTransportRecvHonorsContext(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	tr, err := NewExecTransport("cat")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := tr.Recv(ctx); err != context.DeadlineExceeded {
		t.Fatalf("recv error = %v, want deadline exceeded", err)
	}
}
