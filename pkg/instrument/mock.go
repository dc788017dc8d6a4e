package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chewxy/math32"
	"go.bug.st/serial"

	"github.com/itohio/potlog/pkg/config"
)

var errMockClosed = errors.New("simulated port closed")

// Mock simulates the sensor kit firmware on the far side of a serial port.
// Replies are queued when a full command line has been written.
type Mock struct {
	cfg *config.MockConfig
	clk clock.Clock

	mu       sync.Mutex
	closed   bool
	timeout  time.Duration
	incoming []byte
	outgoing []byte

	// Simulation state
	startTime    time.Time
	measurements int
	display      string
}

// NewMock creates a simulated instrument.
func NewMock(cfg *config.MockConfig, clk clock.Clock) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Mock{
		cfg:       cfg,
		clk:       clk,
		startTime: clk.Now(),
	}
}

// MockOpener returns an Opener that hands out a fresh simulated instrument on every open.
func MockOpener(cfg *config.MockConfig, clk clock.Clock) Opener {
	return func(string, *serial.Mode) (Port, error) {
		return NewMock(cfg, clk), nil
	}
}

// Write accepts command bytes and answers every complete line.
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errMockClosed
	}

	m.incoming = append(m.incoming, p...)
	for {
		i := bytes.IndexByte(m.incoming, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(m.incoming[:i]))
		m.incoming = m.incoming[i+1:]

		if reply, ok := m.handle(line); ok {
			m.outgoing = append(m.outgoing, reply+"\r\n"...)
		}
	}

	return len(p), nil
}

// Read returns queued reply bytes. With nothing queued it behaves like an
// expired read timeout and returns 0 bytes.
func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errMockClosed
	}

	n := copy(p, m.outgoing)
	m.outgoing = m.outgoing[n:]
	return n, nil
}

// SetReadTimeout records the timeout; the simulation never blocks.
func (m *Mock) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = t
	return nil
}

// Close closes the simulated port.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Display returns the last message shown on the simulated display.
func (m *Mock) Display() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display
}

// handle returns the reply for one command line. ok is false when the
// simulated firmware stays silent.
func (m *Mock) handle(line string) (reply string, ok bool) {
	switch {
	case line == CmdIdentify:
		return m.cfg.Identity, true
	case line == CmdMeasure:
		m.measurements++
		if m.cfg.DropEvery > 0 && m.measurements%m.cfg.DropEvery == 0 {
			return "", false
		}
		return fmt.Sprintf("%.0f", m.reading()), true
	case strings.HasPrefix(line, CmdDisplay+" "):
		m.display = strings.TrimPrefix(line, CmdDisplay+" ")
		return "OK", true
	case line == "":
		return "", false
	default:
		return "ERR", true
	}
}

// reading generates the simulated potentiometer position in percent.
func (m *Mock) reading() float32 {
	elapsed := float32(m.clk.Since(m.startTime).Seconds())
	period := float32(m.cfg.Period.Seconds())

	value := m.cfg.Center
	if period > 0 {
		value += m.cfg.Amplitude * math32.Sin(2*math32.Pi*elapsed/period)
	}

	// Deterministic jitter so repeated runs are reproducible.
	value += m.cfg.Jitter * math32.Sin(float32(m.measurements)*1.7)

	return math32.Max(0, math32.Min(100, value))
}
