// Package ucitest provides an in-memory scripted engine transport for
// exercising session and orchestration code without spawning processes.
package ucitest

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Script controls how the fake engine behaves.
type Script struct {
	// OnGo returns the raw protocol lines to emit for the n-th search
	// (0-based), given the most recent position command. The last line is
	// expected to be a bestmove line.
	OnGo func(position string, n int) []string

	// ThinkDelay is how long the engine "searches" before answering.
	// A stop command shortcuts the delay unless IgnoreStop is set.
	ThinkDelay time.Duration

	// MuteHandshake makes the engine swallow the uci command without
	// ever confirming, to provoke startup timeouts.
	MuteHandshake bool

	// IgnoreStop makes the engine ignore stop commands entirely, to
	// exercise the force-kill fallback.
	IgnoreStop bool
}

// Engine implements the session transport interface in memory.
type Engine struct {
	script Script

	mu       sync.Mutex
	position string
	searches int
	stopCh   chan struct{}
	killed   bool

	out  chan string
	done chan struct{}
	once sync.Once
}

func NewEngine(script Script) *Engine {
	if script.OnGo == nil {
		script.OnGo = func(string, int) []string {
			return []string{
				"info depth 1 multipv 1 score cp 0 pv e2e4",
				"bestmove e2e4",
			}
		}
	}
	return &Engine{
		script: script,
		out:    make(chan string, 256),
		done:   make(chan struct{}),
	}
}

func (e *Engine) Send(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "uci":
		if !e.script.MuteHandshake {
			e.emit("id name scripted-engine")
			e.emit("uciok")
		}
	case line == "isready":
		e.emit("readyok")
	case strings.HasPrefix(line, "setoption"), line == "ucinewgame":
		// Accepted silently.
	case strings.HasPrefix(line, "position"):
		e.mu.Lock()
		e.position = line
		e.mu.Unlock()
	case strings.HasPrefix(line, "go"):
		e.mu.Lock()
		pos := e.position
		n := e.searches
		e.searches++
		stop := make(chan struct{})
		e.stopCh = stop
		e.mu.Unlock()
		go e.search(pos, n, stop)
	case line == "stop":
		if !e.script.IgnoreStop {
			e.mu.Lock()
			if e.stopCh != nil {
				select {
				case <-e.stopCh:
				default:
					close(e.stopCh)
				}
			}
			e.mu.Unlock()
		}
	case line == "quit":
		e.shutdown()
	}
	return nil
}

func (e *Engine) search(pos string, n int, stop chan struct{}) {
	if e.script.ThinkDelay > 0 {
		select {
		case <-time.After(e.script.ThinkDelay):
		case <-stop:
		case <-e.done:
			return
		}
	}
	for _, line := range e.script.OnGo(pos, n) {
		e.emit(line)
	}
}

func (e *Engine) Recv(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-e.out:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-e.done:
		return "", io.EOF
	}
}

func (e *Engine) Kill() error {
	e.mu.Lock()
	e.killed = true
	e.mu.Unlock()
	e.shutdown()
	return nil
}

func (e *Engine) Close() error {
	e.shutdown()
	return nil
}

// Killed reports whether the session force-killed the engine.
func (e *Engine) Killed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killed
}

// Searches reports how many go commands were received.
func (e *Engine) Searches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searches
}

func (e *Engine) emit(line string) {
	select {
	case e.out <- line:
	case <-e.done:
	}
}

func (e *Engine) shutdown() {
	e.once.Do(func() { close(e.done) })
}
