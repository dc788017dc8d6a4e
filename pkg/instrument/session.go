// Package instrument implements the line oriented command/response session
// with a serial sensor instrument.
package instrument

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/potlog/pkg/config"
)

const (
	// CmdIdentify asks the instrument for its identity string.
	CmdIdentify = "*IDN?"
	// CmdMeasure asks for the current potentiometer reading in percent.
	CmdMeasure = "MEAS:POT?"
	// CmdDisplay prefixes a message shown on the instrument display.
	CmdDisplay = "DISP:MSG"

	// MaxLineLength bounds a single response line.
	MaxLineLength = 1024
)

// ErrNotConnected is returned by Query when the session has no open port.
var ErrNotConnected = errors.New("not connected")

// DisplayCommand builds the command that shows text on the instrument display.
func DisplayCommand(text string) string {
	return CmdDisplay + " " + text
}

// Option configures a Session.
type Option func(*Session)

// WithOpener replaces serial.Open as the way the port is acquired.
func WithOpener(open Opener) Option {
	return func(s *Session) { s.open = open }
}

// WithClock sets the clock used for the settling pause.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) { s.clk = clk }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// Session is a connection to one instrument. It exchanges one command and one
// response line at a time and is not safe for concurrent use.
type Session struct {
	cfg  config.SerialConfig
	open Opener
	clk  clock.Clock
	log  *zap.Logger

	conn Port
}

// New creates an unconnected session for the given serial parameters.
func New(cfg config.SerialConfig, opts ...Option) *Session {
	s := &Session{
		cfg:  cfg,
		open: openSerial,
		clk:  clock.New(),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func openSerial(address string, mode *serial.Mode) (Port, error) {
	return serial.Open(address, mode)
}

// Address returns the configured port address.
func (s *Session) Address() string {
	return s.cfg.Port
}

// Connect opens the port and waits for the board to settle after the reset
// that opening the port triggers.
func (s *Session) Connect() error {
	if s.conn != nil {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	s.log.Info("connecting", zap.String("port", s.cfg.Port), zap.Int("baud_rate", s.cfg.BaudRate))
	port, err := s.open(s.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.cfg.Port, err)
	}

	if err := port.SetReadTimeout(s.cfg.Timeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.cfg.Port, err)
	}

	if s.cfg.Settle > 0 {
		s.clk.Sleep(s.cfg.Settle)
	}

	s.conn = port
	s.log.Info("connected", zap.String("port", s.cfg.Port))
	return nil
}

// Disconnect closes the port. It is a no-op when the session is not connected.
func (s *Session) Disconnect() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.cfg.Port, err)
	}

	s.log.Info("disconnected", zap.String("port", s.cfg.Port))
	return nil
}

// IsConnected returns whether the session holds an open port.
func (s *Session) IsConnected() bool {
	return s.conn != nil
}

// Query sends command followed by a newline and returns the trimmed response
// line. A read timeout yields an empty response and no error.
func (s *Session) Query(command string) (string, error) {
	if s.conn == nil {
		return "", ErrNotConnected
	}

	if _, err := s.conn.Write([]byte(command + "\n")); err != nil {
		s.logFault(command, err)
		return "", fmt.Errorf("query %q: write: %w", command, err)
	}

	line, err := s.readLine()
	if err != nil {
		s.logFault(command, err)
		return "", fmt.Errorf("query %q: read: %w", command, err)
	}

	if !utf8.Valid(line) {
		return "", fmt.Errorf("query %q: response is not valid UTF-8", command)
	}

	response := strings.TrimSpace(string(line))
	s.log.Debug("query", zap.String("command", command), zap.String("response", response))
	return response, nil
}

// readLine reads single bytes so nothing past the terminator is consumed.
// A zero byte read is the port's read timeout expiring.
func (s *Session) readLine() ([]byte, error) {
	var (
		line []byte
		b    [1]byte
	)
	for len(line) < MaxLineLength {
		n, err := s.conn.Read(b[:])
		if err != nil {
			return nil, err
		}
		if n == 0 || b[0] == '\n' {
			return line, nil
		}
		line = append(line, b[0])
	}
	return nil, fmt.Errorf("response exceeds %d bytes", MaxLineLength)
}

func (s *Session) logFault(command string, err error) {
	s.log.Warn("transport fault",
		zap.String("command", command),
		zap.Bool("disconnected", IsDisconnection(err)),
		zap.Error(err))
}

// IsDisconnection reports whether err indicates the device went away.
func IsDisconnection(err error) bool {
	if err == nil {
		return false
	}

	// serial returns *PortError on unix and PortError values elsewhere.
	var portErrPtr *serial.PortError
	if errors.As(err, &portErrPtr) {
		return isDisconnectionCode(portErrPtr.Code())
	}
	var portErr serial.PortError
	if errors.As(err, &portErr) {
		return isDisconnectionCode(portErr.Code())
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "no such device") ||
		strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "broken pipe")
}

func isDisconnectionCode(code serial.PortErrorCode) bool {
	switch code {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
