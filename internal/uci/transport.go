package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Transport is the line-oriented wire to one engine process. ExecTransport
// drives a real child process; tests substitute an in-memory script.
type Transport interface {
	Send(line string) error
	Recv(ctx context.Context) (string, error)
	// Kill terminates the engine without protocol courtesy.
	Kill() error
	// Close releases the transport and reaps the process. Idempotent.
	Close() error
}

type recvResult struct {
	line string
	err  error
}

type ExecTransport struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan recvResult
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewExecTransport(binaryPath string) (*ExecTransport, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	t := &ExecTransport{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan recvResult, 64),
		done:  make(chan struct{}),
	}
	go t.pump(stdoutPipe)
	return t, nil
}

func (t *ExecTransport) pump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case t.lines <- recvResult{line: strings.TrimSpace(scanner.Text())}:
		case <-t.done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case t.lines <- recvResult{err: err}:
	case <-t.done:
	}
}

func (t *ExecTransport) Send(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport closed")
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := io.WriteString(t.stdin, line)
	return err
}

func (t *ExecTransport) Recv(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-t.lines:
		return res.line, res.err
	}
}

func (t *ExecTransport) Kill() error {
	if t.cmd != nil && t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}

func (t *ExecTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	if t.stdin != nil {
		t.stdin.Close()
	}
	t.mu.Unlock()

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	if t.cmd != nil {
		_ = t.cmd.Wait()
	}
	return nil
}
