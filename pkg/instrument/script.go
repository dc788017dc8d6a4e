package instrument

import (
	"bytes"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Reply is one scripted answer to a command.
type Reply struct {
	Line string // Sent back with a trailing newline; empty means the read times out
	Err  error  // Returned from the read instead of any bytes
}

// Respond scripts a reply line.
func Respond(line string) Reply { return Reply{Line: line} }

// Timeout scripts a command that gets no reply.
func Timeout() Reply { return Reply{} }

// Fail scripts a transport fault while reading the reply.
func Fail(err error) Reply { return Reply{Err: err} }

// ScriptedPort is a Port that answers each written command line with the
// next scripted Reply. Once the script is exhausted every read times out.
type ScriptedPort struct {
	// WriteErr, when set, is returned from every Write.
	WriteErr error

	mu       sync.Mutex
	replies  []Reply
	partial  []byte
	pending  []byte
	readErr  error
	commands []string
	timeout  time.Duration
	closes   int
}

// NewScriptedPort creates a port that plays back replies in order.
func NewScriptedPort(replies ...Reply) *ScriptedPort {
	return &ScriptedPort{replies: replies}
}

// Opener returns an Opener that always hands out this port.
func (p *ScriptedPort) Opener() Opener {
	return func(string, *serial.Mode) (Port, error) {
		return p, nil
	}
}

func (p *ScriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		p.commands = append(p.commands, string(p.partial[:i]))
		p.partial = p.partial[i+1:]

		if len(p.replies) == 0 {
			continue
		}
		reply := p.replies[0]
		p.replies = p.replies[1:]
		switch {
		case reply.Err != nil:
			p.readErr = reply.Err
		case reply.Line != "":
			p.pending = append(p.pending, reply.Line+"\n"...)
		}
	}
	return len(b), nil
}

func (p *ScriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr != nil {
		err := p.readErr
		p.readErr = nil
		return 0, err
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *ScriptedPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *ScriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// Commands returns every command line written so far.
func (p *ScriptedPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// ReadTimeout returns the timeout last applied to the port.
func (p *ScriptedPort) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

// Closes returns how many times the port was closed.
func (p *ScriptedPort) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
